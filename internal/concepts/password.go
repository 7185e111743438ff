package concepts

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"

	"github.com/weftworks/weft/internal/directory"
	"github.com/weftworks/weft/internal/ir"
	"github.com/weftworks/weft/internal/storage"
)

const (
	passwordRelation  = "password"
	minPasswordLength = 8
	saltBytes         = 16
)

// Password stores salted SHA-256 password digests per user. check is
// deliberately total: a wrong password is ok{valid: false}, not an
// error, so syncs can branch on it.
func Password(store storage.Store) (ir.ConceptSpec, *directory.Local) {
	spec := ir.ConceptSpec{
		URI:     "Password",
		Purpose: "verify user passwords without ever storing them",
		Actions: []ir.ActionSig{
			{
				Name: "set",
				Inputs: []ir.NamedField{
					{Name: "user", Type: "string"},
					{Name: "password", Type: "string"},
				},
				Variants: []ir.VariantSig{
					{Tag: "ok", Fields: []ir.NamedField{{Name: "user", Type: "string"}}},
					{Tag: "invalid", Fields: []ir.NamedField{{Name: "message", Type: "string"}}},
				},
			},
			{
				Name: "check",
				Inputs: []ir.NamedField{
					{Name: "user", Type: "string"},
					{Name: "password", Type: "string"},
				},
				Variants: []ir.VariantSig{
					{Tag: "ok", Fields: []ir.NamedField{{Name: "valid", Type: "bool"}}},
					{Tag: "notfound", Fields: []ir.NamedField{{Name: "message", Type: "string"}}},
				},
			},
			{
				Name:   "validate",
				Inputs: []ir.NamedField{{Name: "password", Type: "string"}},
				Variants: []ir.VariantSig{
					{Tag: "ok", Fields: []ir.NamedField{{Name: "valid", Type: "bool"}}},
				},
			},
		},
	}

	transport := directory.NewLocal(spec).
		Action("set", func(ctx context.Context, input ir.Object) (string, ir.Object, error) {
			user, _ := input["user"].(ir.String)
			password, _ := input["password"].(ir.String)
			if len(password) < minPasswordLength {
				return "invalid", ir.Object{
					"message": ir.String(fmt.Sprintf("password must be at least %d characters", minPasswordLength)),
				}, nil
			}

			salt := make([]byte, saltBytes)
			if _, err := rand.Read(salt); err != nil {
				return "", nil, fmt.Errorf("generate salt: %w", err)
			}
			digest := hashPassword(string(password), salt)

			err := store.Put(ctx, passwordRelation, string(user), ir.Object{
				"user": user,
				"hash": ir.String(base64.StdEncoding.EncodeToString(digest)),
				"salt": ir.String(base64.StdEncoding.EncodeToString(salt)),
			})
			if err != nil {
				return "", nil, err
			}
			return "ok", ir.Object{"user": user}, nil
		}).
		Action("check", func(ctx context.Context, input ir.Object) (string, ir.Object, error) {
			user, _ := input["user"].(ir.String)
			password, _ := input["password"].(ir.String)

			record, found, err := store.Get(ctx, passwordRelation, string(user))
			if err != nil {
				return "", nil, err
			}
			if !found {
				return "notfound", ir.Object{"message": ir.String("no password set for user")}, nil
			}

			storedHash, _ := record["hash"].(ir.String)
			storedSalt, _ := record["salt"].(ir.String)
			salt, err := base64.StdEncoding.DecodeString(string(storedSalt))
			if err != nil {
				return "", nil, fmt.Errorf("decode salt: %w", err)
			}
			want, err := base64.StdEncoding.DecodeString(string(storedHash))
			if err != nil {
				return "", nil, fmt.Errorf("decode hash: %w", err)
			}

			got := hashPassword(string(password), salt)
			valid := subtle.ConstantTimeCompare(got, want) == 1
			return "ok", ir.Object{"valid": ir.Bool(valid)}, nil
		}).
		Action("validate", func(_ context.Context, input ir.Object) (string, ir.Object, error) {
			password, _ := input["password"].(ir.String)
			return "ok", ir.Object{"valid": ir.Bool(len(password) >= minPasswordLength)}, nil
		})
	return spec, transport
}

func hashPassword(password string, salt []byte) []byte {
	h := sha256.New()
	h.Write([]byte(password))
	h.Write(salt)
	return h.Sum(nil)
}
