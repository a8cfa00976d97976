package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseRole(t *testing.T) {
	tests := []struct {
		in   string
		want Role
	}{
		{"Professor", RoleProfessor},
		{"PROFESSOR", RoleProfessor},
		{"professor", RoleProfessor},
		{" Student ", RoleStudent},
		{"student", RoleStudent},
		{"Guest", RoleGuest},
		{"", RoleGuest},
		{"admin", RoleGuest},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseRole(tt.in))
		})
	}
}

func TestRole_StringRoundTrip(t *testing.T) {
	for _, r := range []Role{RoleGuest, RoleStudent, RoleProfessor} {
		assert.Equal(t, r, ParseRole(r.String()))
	}
	assert.Equal(t, "Professor", RoleProfessor.String())
	assert.True(t, RoleProfessor.IsProfessor())
	assert.False(t, RoleStudent.IsProfessor())
}

func TestVirtualPath_Untitled(t *testing.T) {
	a := NewUntitledPath()
	b := NewUntitledPath()

	assert.True(t, a.IsUntitled())
	assert.NotEqual(t, a, b)
	assert.NoError(t, a.Validate())
	assert.False(t, VirtualPath("/home/alice/Main.java").IsUntitled())
}

func TestVirtualPath_Validate(t *testing.T) {
	assert.ErrorIs(t, VirtualPath("").Validate(), ErrEmptyPath)
	assert.ErrorIs(t, VirtualPath("/a|b").Validate(), ErrInvalidPath)
	assert.ErrorIs(t, VirtualPath("/a\nb").Validate(), ErrInvalidPath)
	assert.NoError(t, VirtualPath("/tmp/Main.java").Validate())
}

func TestValidateNickname(t *testing.T) {
	assert.NoError(t, ValidateNickname("alice"))
	assert.NoError(t, ValidateNickname("Prof. Smith"))
	assert.ErrorIs(t, ValidateNickname(""), ErrEmptyNickname)
	assert.ErrorIs(t, ValidateNickname("a|b"), ErrInvalidNickname)
	assert.ErrorIs(t, ValidateNickname("a\r"), ErrInvalidNickname)
}

func TestIsValidEventKind(t *testing.T) {
	assert.True(t, IsValidEventKind(EventJoin))
	assert.True(t, IsValidEventKind(EventQuestion))
	assert.False(t, IsValidEventKind("chat"))
}
