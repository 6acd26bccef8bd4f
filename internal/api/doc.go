// Package api provides the JSON/SSE HTTP boundary for the assistant.
//
// # Endpoints
//
// Health probes (no middleware):
//   - GET /health — returns {"status":"ok"}
//   - GET /ready  — checks the database pool
//
// Chat:
//   - POST /api/chat            — run one turn, streaming the reply as SSE
//   - GET  /api/chat/{id}       — full message history, tool calls included
//   - GET  /api/chats           — conversations by recency
//   - POST /api/chat/{id}/reset — evict the conversation's cached window
//
// # SSE Streaming
//
// POST /api/chat streams typed events:
//
//   - chunk: incremental text content
//   - done:  final response with conversation metadata
//   - error: turn-level error
//
// Errors are delivered as SSE error events rather than HTTP error
// responses, since the event-stream headers are committed up front.
//
// # Error Handling
//
// Non-streaming responses use an envelope format:
//
//	Success: {"data": <payload>}
//	Error:   {"error": {"code": "...", "message": "..."}}
package api
