package user

import (
	"context"
	"testing"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/trackademic/core"
)

type fakeRepo struct {
	Repository
	taken string
}

func (r fakeRepo) CheckEmailUniqueness(ctx context.Context, email string, excludedUsers ...User) error {
	if email == r.taken {
		return ErrEmailExists
	}
	return nil
}

func newValidator() (*validator.Validate, ut.Translator) {
	_en := en.New()
	translator, _ := ut.New(_en, _en).GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, translator)
	InitValidators(validate, translator)
	return validate, translator
}

func TestNewUser_Validate(t *testing.T) {
	validate, translator := newValidator()
	svc := NewService(fakeRepo{taken: "bob@example.com"})

	tests := []struct {
		name    string
		nu      NewUser
		wantErr map[string]string
	}{
		{name: "valid", nu: NewUser{Name: " Alice ", Email: " Alice@Example.com ", Password: "Sup3r-Secret!", PasswordConfirm: "Sup3r-Secret!"}},
		{name: "too short", nu: NewUser{Name: "Alice", Email: "alice@example.com", Password: "Ab1!", PasswordConfirm: "Ab1!"},
			wantErr: map[string]string{"password": "password must contain at least 8 characters"}},
		{name: "whitespace", nu: NewUser{Name: "Alice", Email: "alice@example.com", Password: "Sup3r Secret!", PasswordConfirm: "Sup3r Secret!"},
			wantErr: map[string]string{"password": "password must not contain whitespace"}},
		{name: "numeric", nu: NewUser{Name: "Alice", Email: "alice@example.com", Password: "1234567890", PasswordConfirm: "1234567890"},
			wantErr: map[string]string{"password": "password cannot be entirely numeric"}},
		{name: "not complex", nu: NewUser{Name: "Alice", Email: "alice@example.com", Password: "supersecret", PasswordConfirm: "supersecret"},
			wantErr: map[string]string{"password": pwdComplexityText}},
		{name: "similar to email", nu: NewUser{Name: "Alice", Email: "alice@example.com", Password: "Alice@example1", PasswordConfirm: "Alice@example1"},
			wantErr: map[string]string{"password": "password cannot be similar to user attributes"}},
		{name: "confirm mismatch", nu: NewUser{Name: "Alice", Email: "alice@example.com", Password: "Sup3r-Secret!", PasswordConfirm: "Sup3r-Secret?"},
			wantErr: map[string]string{"password_confirm": "password_confirm must be equal to Password"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.nu.Validate(context.Background(), validate, svc)
			if tc.wantErr == nil {
				require.NoError(t, err)
				assert.Equal(t, "Alice", tc.nu.Name)
				assert.Equal(t, "alice@example.com", tc.nu.Email)
				return
			}
			verrs, ok := err.(validator.ValidationErrors)
			require.True(t, ok, "got %v", err)
			got := make(map[string]string)
			for _, fe := range verrs {
				got[fe.Field()] = fe.Translate(translator)
			}
			assert.Equal(t, tc.wantErr, got)
		})
	}

	t.Run("email taken", func(t *testing.T) {
		nu := NewUser{Name: "Bob", Email: "BOB@example.com", Password: "Sup3r-Secret!", PasswordConfirm: "Sup3r-Secret!"}
		err := nu.Validate(context.Background(), validate, svc)
		var verr *core.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, []core.FieldError{{Field: "email", Error: ErrEmailExists.Error()}}, verr.Fields)
	})
}

func TestUpdateUser_Validate(t *testing.T) {
	validate, _ := newValidator()
	alice := User{Name: "Alice", Email: "alice@example.com"}

	uu := UpdateUser{Name: "  "}
	require.NoError(t, uu.Validate(alice, validate))
	assert.Equal(t, "Alice", uu.Name)

	uu = UpdateUser{Password: "alice@example.com1A!", PasswordConfirm: "alice@example.com1A!"}
	assert.Error(t, uu.Validate(alice, validate))

	uu = UpdateUser{Password: "Sup3r-Secret!"}
	assert.Error(t, uu.Validate(alice, validate))
}

func TestUser_Password(t *testing.T) {
	var usr User
	require.NoError(t, usr.SetPassword("Sup3r-Secret!"))
	assert.NotEmpty(t, usr.PasswordHash)
	assert.NoError(t, usr.CheckPassword("Sup3r-Secret!"))
	assert.Error(t, usr.CheckPassword("sup3r-secret!"))
}
