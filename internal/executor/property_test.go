package executor

import (
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/jhump/protoreflect/v2/protobuilder"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

type taggedUser struct {
	ID       string `graphql:"id" json:"identifier"`
	FullName string `json:"name"`
	Email    string
	Hidden   string `graphql:"-" json:"-"`
	nickname string
}

func (u taggedUser) Greeting() string { return "hi " + u.FullName }

func (u *taggedUser) GetNickname() string { return u.nickname }

func (u taggedUser) Avatar() (string, error) { return "", errors.New("no avatar") }

func TestProperty_Maps(t *testing.T) {
	got, err := property(map[string]any{"a": 1}, "a")
	require.NoError(t, err)
	require.Equal(t, 1, got)

	got, err = property(map[string]string{"b": "x"}, "b")
	require.NoError(t, err)
	require.Equal(t, "x", got)

	got, err = property(map[string]any{"a": 1}, "missing")
	require.NoError(t, err)
	require.Nil(t, got)

	got, err = property(nil, "a")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestProperty_Thunks(t *testing.T) {
	src := map[string]any{
		"lazy":   func() any { return "later" },
		"failed": func() (any, error) { return nil, errors.New("thunk failed") },
	}
	got, err := property(src, "lazy")
	require.NoError(t, err)
	require.Equal(t, "later", got)

	_, err = property(src, "failed")
	require.EqualError(t, err, "thunk failed")
}

func TestProperty_Structs(t *testing.T) {
	u := &taggedUser{ID: "1", FullName: "Ada", Email: "ada@example.com", Hidden: "h", nickname: "countess"}
	cases := []struct {
		field string
		want  any
	}{
		{"id", "1"},
		{"identifier", "1"},
		{"name", "Ada"},
		{"Email", "ada@example.com"},
		{"email", "ada@example.com"},
		{"greeting", "hi Ada"},
		{"nickname", "countess"},
		{"Hidden", "h"},
		{"unknown", nil},
	}
	for _, tc := range cases {
		t.Run(tc.field, func(t *testing.T) {
			got, err := property(u, tc.field)
			require.NoError(t, err)
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("property(%q) mismatch (-want +got):\n%s", tc.field, diff)
			}
		})
	}

	_, err := property(u, "avatar")
	require.EqualError(t, err, "no avatar")

	var nilUser *taggedUser
	got, err := property(nilUser, "name")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestProperty_JSON(t *testing.T) {
	raw := json.RawMessage(`{"name":"Ada","age":36,"tags":["a","b"],"friend":{"name":"Charles"},"weird.key":true}`)

	got, err := property(raw, "name")
	require.NoError(t, err)
	require.Equal(t, "Ada", got)

	got, err = property(raw, "age")
	require.NoError(t, err)
	require.Equal(t, float64(36), got)

	got, err = property(raw, "tags")
	require.NoError(t, err)
	require.Equal(t, []any{"a", "b"}, got)

	got, err = property(raw, "weird.key")
	require.NoError(t, err)
	require.Equal(t, true, got)

	friend, err := property(raw, "friend")
	require.NoError(t, err)
	require.IsType(t, json.RawMessage{}, friend)
	got, err = property(friend, "name")
	require.NoError(t, err)
	require.Equal(t, "Charles", got)

	got, err = property(raw, "missing")
	require.NoError(t, err)
	require.Nil(t, got)
}

func buildUserDescriptor(t *testing.T) protoreflect.MessageDescriptor {
	t.Helper()
	fb := protobuilder.NewFile("test/user.proto")
	fb.SetPackageName(protoreflect.FullName("test.v1"))
	fb.SetSyntax(protoreflect.Proto3)

	role := protobuilder.NewEnum("Role")
	unspecified := protobuilder.NewEnumValue("ROLE_UNSPECIFIED")
	unspecified.SetNumber(0)
	role.AddValue(unspecified)
	admin := protobuilder.NewEnumValue("ROLE_ADMIN")
	admin.SetNumber(1)
	role.AddValue(admin)
	fb.AddEnum(role)

	address := protobuilder.NewMessage("AddressSource")
	address.AddField(protobuilder.NewField("city", protobuilder.FieldTypeScalar(protoreflect.StringKind)))
	fb.AddMessage(address)

	user := protobuilder.NewMessage("UserSource")
	user.AddField(protobuilder.NewField("display_name", protobuilder.FieldTypeScalar(protoreflect.StringKind)))
	user.AddField(protobuilder.NewField("age", protobuilder.FieldTypeScalar(protoreflect.Int32Kind)))
	tags := protobuilder.NewField("tags", protobuilder.FieldTypeScalar(protoreflect.StringKind))
	tags.SetRepeated()
	user.AddField(tags)
	user.AddField(protobuilder.NewField("role", protobuilder.FieldTypeEnum(role)))
	user.AddField(protobuilder.NewField("address", protobuilder.FieldTypeMessage(address)))
	fb.AddMessage(user)

	fd, err := fb.Build()
	require.NoError(t, err)
	return fd.Messages().ByName("UserSource")
}

func TestProperty_Proto(t *testing.T) {
	md := buildUserDescriptor(t)
	msg := dynamicpb.NewMessage(md)
	msg.Set(md.Fields().ByName("display_name"), protoreflect.ValueOfString("Ada"))
	msg.Set(md.Fields().ByName("age"), protoreflect.ValueOfInt32(36))
	tags := msg.Mutable(md.Fields().ByName("tags")).List()
	tags.Append(protoreflect.ValueOfString("math"))
	tags.Append(protoreflect.ValueOfString("poetry"))
	msg.Set(md.Fields().ByName("role"), protoreflect.ValueOfEnum(1))

	cases := []struct {
		field string
		want  any
	}{
		{"display_name", "Ada"},
		{"displayName", "Ada"},
		{"age", int32(36)},
		{"tags", []any{"math", "poetry"}},
		{"role", "ROLE_ADMIN"},
		{"address", nil},
		{"unknown", nil},
	}
	for _, tc := range cases {
		t.Run(tc.field, func(t *testing.T) {
			got, err := property(msg, tc.field)
			require.NoError(t, err)
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("property(%q) mismatch (-want +got):\n%s", tc.field, diff)
			}
		})
	}

	addrField := md.Fields().ByName("address")
	addr := dynamicpb.NewMessage(addrField.Message())
	addr.Set(addrField.Message().Fields().ByName("city"), protoreflect.ValueOfString("London"))
	msg.Set(addrField, protoreflect.ValueOfMessage(addr))

	nested, err := property(msg, "address")
	require.NoError(t, err)
	got, err := property(nested, "city")
	require.NoError(t, err)
	require.Equal(t, "London", got)
}

func TestUnbox(t *testing.T) {
	s := "x"
	var nilStr *string
	n := 3
	u := &taggedUser{ID: "1"}
	cases := []struct {
		name string
		in   any
		want any
	}{
		{"nil", nil, nil},
		{"string wrapper", wrapperspb.String("x"), "x"},
		{"int64 wrapper", wrapperspb.Int64(7), int64(7)},
		{"bool wrapper", wrapperspb.Bool(true), true},
		{"valid NullString", sql.NullString{String: "y", Valid: true}, "y"},
		{"invalid NullString", sql.NullString{}, nil},
		{"pointer to string", &s, "x"},
		{"nil pointer", nilStr, nil},
		{"pointer to int", &n, 3},
		{"plain", 4, 4},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := unbox(tc.in)
			require.NoError(t, err)
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("unbox mismatch (-want +got):\n%s", diff)
			}
		})
	}

	got, err := unbox(u)
	require.NoError(t, err)
	require.Same(t, u, got)

	_, err = unbox(failingValuer{})
	require.EqualError(t, err, "decrypt failed")
}

type failingValuer struct{}

func (failingValuer) Value() (driver.Value, error) { return nil, errors.New("decrypt failed") }
