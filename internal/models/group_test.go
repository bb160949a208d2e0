package models

import "testing"

func intPtr(i int) *int { return &i }

func TestCreateGroupRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		req     CreateGroupRequest
		wantErr bool
	}{
		{"Valid defaults", CreateGroupRequest{Name: "Book club"}, false},
		{"Name too short", CreateGroupRequest{Name: "ab"}, true},
		{"Name padded to length", CreateGroupRequest{Name: "  ab  "}, true},
		{"Max members at lower bound", CreateGroupRequest{Name: "Trio", MaxMembers: intPtr(2)}, false},
		{"Max members at upper bound", CreateGroupRequest{Name: "Team", MaxMembers: intPtr(10)}, false},
		{"Max members below range", CreateGroupRequest{Name: "Solo", MaxMembers: intPtr(1)}, true},
		{"Max members above range", CreateGroupRequest{Name: "Crowd", MaxMembers: intPtr(11)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("CreateGroupRequest.Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestGroupUpdate_Validate(t *testing.T) {
	name := "ok"
	if err := (&GroupUpdate{}).Validate(); err == nil {
		t.Error("expected error for empty update")
	}
	if err := (&GroupUpdate{Name: &name}).Validate(); err == nil {
		t.Error("expected error for short name")
	}
	desc := ""
	if err := (&GroupUpdate{Description: &desc}).Validate(); err != nil {
		t.Errorf("clearing the description should be allowed, got %v", err)
	}
}

func TestGroup_Membership(t *testing.T) {
	g := Group{
		Members:    []string{"a", "b"},
		Admins:     []string{"a"},
		MaxMembers: 2,
	}

	if !g.IsMember("b") || g.IsMember("c") {
		t.Error("IsMember mismatch")
	}
	if !g.IsAdmin("a") || g.IsAdmin("b") {
		t.Error("IsAdmin mismatch")
	}
	if !g.AtCapacity() {
		t.Error("expected group at capacity")
	}
	if !g.IsLastAdmin("a") {
		t.Error("expected a to be the last admin")
	}
	if g.IsLastAdmin("b") {
		t.Error("b is not an admin")
	}

	g.Admins = append(g.Admins, "b")
	if g.IsLastAdmin("a") {
		t.Error("a is no longer the only admin")
	}
}
