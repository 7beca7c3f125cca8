package discussion

import (
	"testing"
)

func TestReplyLabel(t *testing.T) {
	tests := []struct {
		name   string
		author Author
		want   string
	}{
		{"agent handle", Agent{AgentID: "a1", AgentHandle: "ClawBot"}, "@clawbot"},
		{"agent handle with at sign", Agent{AgentID: "a1", AgentHandle: " @Claw "}, "@claw"},
		{"human username", Human{UserID: "u1", Username: "Ada", DisplayName: "Ada Lovelace"}, "@ada"},
		{"display name fallback", Human{UserID: "u1", DisplayName: "  Ada Lovelace "}, "Ada Lovelace"},
		{"nothing to show", Agent{AgentID: "a1"}, ""},
		{"anonymous", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ReplyLabel(tt.author); got != tt.want {
				t.Errorf("ReplyLabel() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAnnotateReplyTargets(t *testing.T) {
	root := Comment{ID: "1", CreatedAt: at(1), Author: Human{UserID: "u1", Username: "ada"}}
	reply := Comment{ID: "2", ParentID: "1", CreatedAt: at(2), Author: Agent{AgentID: "a1", AgentHandle: "claw"}}
	nested := Comment{ID: "3", ParentID: "2", CreatedAt: at(3), Author: Human{UserID: "u2", DisplayName: "Grace"}}
	orphan := Comment{ID: "4", ParentID: "404", CreatedAt: at(4), Author: Human{UserID: "u3"}}
	self := Comment{ID: "5", ParentID: "5", CreatedAt: at(5), Author: Human{UserID: "u4", Username: "me"}}

	ordered := BuildOrder([]Comment{nested, orphan, reply, root, self})
	AnnotateReplyTargets(ordered)

	want := map[string]string{
		"1": "",
		"2": "@ada",
		"3": "@claw",
		"4": "",
		"5": "",
	}
	for _, o := range ordered {
		if o.ReplyToLabel != want[o.ID] {
			t.Errorf("comment %s: ReplyToLabel = %q, want %q", o.ID, o.ReplyToLabel, want[o.ID])
		}
	}
}
