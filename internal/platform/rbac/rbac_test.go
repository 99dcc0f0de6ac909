package rbac

import (
	"errors"
	"testing"

	"memodams/backend/internal/security"
)

func TestAuthorize(t *testing.T) {
	admins := NewAdmins(" Root@MemoDams.app ")
	cases := []struct {
		name   string
		claims *security.Claims
		ok     bool
	}{
		{"nil claims", nil, false},
		{"admin claim", &security.Claims{Admin: true}, true},
		{"plain user", &security.Claims{Email: "u1@example.com", EmailVerified: true}, false},
		{"bootstrap address", &security.Claims{Email: "root@memodams.app", EmailVerified: true}, true},
		{"bootstrap address any case", &security.Claims{Email: "ROOT@memodams.APP", EmailVerified: true}, true},
		{"bootstrap address unverified", &security.Claims{Email: "root@memodams.app"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := admins.Authorize(tc.claims)
			if tc.ok && err != nil {
				t.Fatalf("Authorize = %v, want nil", err)
			}
			if !tc.ok && !errors.Is(err, ErrPermissionDenied) {
				t.Fatalf("Authorize = %v, want ErrPermissionDenied", err)
			}
		})
	}
}

func TestAuthorize_NoBootstrap(t *testing.T) {
	admins := NewAdmins("")
	if admins.IsBootstrap("") {
		t.Error("empty email must never match")
	}
	if err := admins.Authorize(&security.Claims{Email: "", EmailVerified: true}); !errors.Is(err, ErrPermissionDenied) {
		t.Errorf("Authorize = %v", err)
	}
}
