package conversation

import "testing"

func TestRoleValid(t *testing.T) {
	for _, r := range []Role{RoleUser, RoleAssistant, RoleTool} {
		if !r.Valid() {
			t.Errorf("Role(%q).Valid() = false, want true", r)
		}
	}
	for _, r := range []Role{"", "system", "model", "USER"} {
		if r.Valid() {
			t.Errorf("Role(%q).Valid() = true, want false", r)
		}
	}
}

func TestMessageValidate(t *testing.T) {
	tests := []struct {
		name    string
		msg     Message
		wantErr bool
	}{
		{"user ok", Message{Role: RoleUser, Content: "hi"}, false},
		{"assistant ok", Message{Role: RoleAssistant, Content: "hello"}, false},
		{
			"assistant with proposals",
			Message{Role: RoleAssistant, ToolCalls: []ToolCall{{ID: "c1", Name: "get_current_time"}}},
			false,
		},
		{
			"tool ok",
			Message{Role: RoleTool, ToolCallID: "c1", ToolName: "get_current_time", Content: "{}"},
			false,
		},
		{"unknown role", Message{Role: "system"}, true},
		{"user with tool calls", Message{Role: RoleUser, ToolCalls: []ToolCall{{ID: "c1"}}}, true},
		{"tool without call id", Message{Role: RoleTool, ToolName: "x"}, true},
		{"assistant answering a call", Message{Role: RoleAssistant, ToolCallID: "c1"}, true},
		{
			"tool proposing calls",
			Message{Role: RoleTool, ToolCallID: "c1", ToolCalls: []ToolCall{{ID: "c2"}}},
			true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.msg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
