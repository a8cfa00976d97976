package protocol

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"github.com/SoCo-NP/SoCo/pkg/types"
)

// arity is the accepted field count (excluding the tag) for one tag.
// The line is split into at most max fields so the last field may carry
// anything the split would otherwise break apart.
type arity struct {
	min, max int
}

var arities = map[Tag]arity{
	TagJoin:           {1, 2},
	TagInfo:           {1, 1},
	TagRoleInfo:       {2, 2},
	TagEdit:           {2, 2},
	TagCursor:         {4, 4},
	TagViewport:       {2, 2},
	TagLaser:          {3, 4},
	TagFileCreate:     {3, 3},
	TagFileDelete:     {2, 2},
	TagFileRename:     {3, 3},
	TagQuestion:       {2, 2},
	TagCompileReq:     {2, 2},
	TagCompileGranted: {2, 2},
	TagCompileDenied:  {2, 2},
	TagCompileRelease: {2, 2},
	TagCompileStart:   {2, 2},
	TagCompileOut:     {3, 3},
	TagCompileEnd:     {3, 3},
}

// KnownTag reports whether t is part of the protocol
func KnownTag(t Tag) bool {
	_, ok := arities[t]
	return ok
}

// SplitTag returns the tag of a raw line without decoding its fields
func SplitTag(line string) Tag {
	line = strings.TrimSuffix(line, "\r")
	if i := strings.Index(line, Separator); i >= 0 {
		return Tag(line[:i])
	}
	return Tag(line)
}

// ParseInt converts a numeric field, returning 0 for anything unparsable
func ParseInt(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}

// EncodeText base64-encodes free text so it can be carried as one field
func EncodeText(s string) string {
	return base64.StdEncoding.EncodeToString([]byte(s))
}

// DecodeText reverses EncodeText
func DecodeText(s string) (string, error) {
	b, err := base64.StdEncoding.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrBadPayload, err)
	}
	return string(b), nil
}

// Decode parses one line (without its trailing newline) into a Message.
// FUNCTIONAL DISCOVERY: The protocol has no version field, so every failure is a
// typed error for the caller to log and drop; nothing here panics on input
func Decode(line string) (Message, error) {
	line = strings.TrimSuffix(line, "\r")
	if line == "" {
		return nil, ErrEmptyLine
	}

	tag := SplitTag(line)
	ar, ok := arities[tag]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTag, string(tag))
	}

	rest := strings.TrimPrefix(line, string(tag))
	if !strings.HasPrefix(rest, Separator) {
		return nil, fmt.Errorf("%w: %s has no fields", ErrArity, tag)
	}
	f := strings.SplitN(rest[len(Separator):], Separator, ar.max)
	if len(f) < ar.min {
		return nil, fmt.Errorf("%w: %s wants %d fields, got %d", ErrArity, tag, ar.min, len(f))
	}

	switch tag {
	case TagJoin:
		role := types.DefaultRole
		if len(f) == 2 {
			role = types.ParseRole(f[1])
		}
		return Join{Nickname: f[0], Role: role}, nil
	case TagInfo:
		return Info{Text: f[0]}, nil
	case TagRoleInfo:
		return RoleInfo{Nickname: f[0], Role: types.ParseRole(f[1])}, nil
	case TagEdit:
		text, err := DecodeText(f[1])
		if err != nil {
			return nil, err
		}
		return Edit{Path: types.VirtualPath(f[0]), Text: text}, nil
	case TagCursor:
		return Cursor{Path: types.VirtualPath(f[0]), Nickname: f[1], Dot: ParseInt(f[2]), Mark: ParseInt(f[3])}, nil
	case TagViewport:
		return Viewport{Path: types.VirtualPath(f[0]), Line: ParseInt(f[1])}, nil
	case TagLaser:
		l := Laser{Path: types.VirtualPath(f[0]), X: ParseInt(f[1]), Y: ParseInt(f[2])}
		if len(f) == 4 {
			l.Nickname = f[3]
		}
		return l, nil
	case TagFileCreate:
		return FileCreate{Path: types.VirtualPath(f[0]), IsDir: strings.EqualFold(f[1], "true"), Nickname: f[2]}, nil
	case TagFileDelete:
		return FileDelete{Path: types.VirtualPath(f[0]), Nickname: f[1]}, nil
	case TagFileRename:
		return FileRename{OldPath: types.VirtualPath(f[0]), NewPath: types.VirtualPath(f[1]), Nickname: f[2]}, nil
	case TagQuestion:
		text, err := DecodeText(f[1])
		if err != nil {
			return nil, err
		}
		return Question{Student: f[0], Text: text}, nil
	case TagCompileReq:
		return CompileReq{Path: types.VirtualPath(f[0]), Nickname: f[1]}, nil
	case TagCompileGranted:
		return CompileGranted{Path: types.VirtualPath(f[0]), Nickname: f[1]}, nil
	case TagCompileDenied:
		return CompileDenied{Path: types.VirtualPath(f[0]), Holder: f[1]}, nil
	case TagCompileRelease:
		return CompileRelease{Path: types.VirtualPath(f[0]), Nickname: f[1]}, nil
	case TagCompileStart:
		return CompileStart{Path: types.VirtualPath(f[0]), Nickname: f[1]}, nil
	case TagCompileOut:
		out, err := DecodeText(f[2])
		if err != nil {
			return nil, err
		}
		return CompileOut{Path: types.VirtualPath(f[0]), Nickname: f[1], Line: out}, nil
	case TagCompileEnd:
		return CompileEnd{Path: types.VirtualPath(f[0]), Nickname: f[1], ExitCode: ParseInt(f[2])}, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownTag, string(tag))
}

// Encode renders a Message as one line without the trailing newline.
// Plain fields are rejected with ErrInvalidField rather than emitted as a corrupt line.
func Encode(m Message) (string, error) {
	var fields []string

	switch v := m.(type) {
	case nil:
		return "", ErrNilMessage
	case Join:
		fields = []string{v.Nickname, v.Role.String()}
	case Info:
		if strings.ContainsAny(v.Text, "\r\n") {
			return "", fmt.Errorf("%w: INFO text", ErrInvalidField)
		}
		return string(TagInfo) + Separator + v.Text, nil
	case RoleInfo:
		fields = []string{v.Nickname, v.Role.String()}
	case Edit:
		fields = []string{string(v.Path), EncodeText(v.Text)}
	case Cursor:
		fields = []string{string(v.Path), v.Nickname, strconv.Itoa(v.Dot), strconv.Itoa(v.Mark)}
	case Viewport:
		fields = []string{string(v.Path), strconv.Itoa(v.Line)}
	case Laser:
		fields = []string{string(v.Path), strconv.Itoa(v.X), strconv.Itoa(v.Y)}
		if v.Nickname != "" {
			fields = append(fields, v.Nickname)
		}
	case FileCreate:
		fields = []string{string(v.Path), strconv.FormatBool(v.IsDir), v.Nickname}
	case FileDelete:
		fields = []string{string(v.Path), v.Nickname}
	case FileRename:
		fields = []string{string(v.OldPath), string(v.NewPath), v.Nickname}
	case Question:
		fields = []string{v.Student, EncodeText(v.Text)}
	case CompileReq:
		fields = []string{string(v.Path), v.Nickname}
	case CompileGranted:
		fields = []string{string(v.Path), v.Nickname}
	case CompileDenied:
		fields = []string{string(v.Path), v.Holder}
	case CompileRelease:
		fields = []string{string(v.Path), v.Nickname}
	case CompileStart:
		fields = []string{string(v.Path), v.Nickname}
	case CompileOut:
		fields = []string{string(v.Path), v.Nickname, EncodeText(v.Line)}
	case CompileEnd:
		fields = []string{string(v.Path), v.Nickname, strconv.Itoa(v.ExitCode)}
	default:
		return "", fmt.Errorf("%w: %T", ErrUnknownTag, m)
	}

	for i, f := range fields {
		if !types.IsWireSafe(f) {
			return "", fmt.Errorf("%w: %s field %d", ErrInvalidField, m.Tag(), i+1)
		}
	}

	return string(m.Tag()) + Separator + strings.Join(fields, Separator), nil
}

// MustEncode is Encode for messages built from trusted values; it panics on error
func MustEncode(m Message) string {
	line, err := Encode(m)
	if err != nil {
		panic(err)
	}
	return line
}
