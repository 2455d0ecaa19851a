package password

import (
	"crypto/rand"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	MethodArgon2id = "argon2id"
	MethodSSHA512  = "ssha512"

	DefaultSaltBytes = 32
)

var (
	ErrMismatch      = errors.New("password mismatch")
	ErrUnknownMethod = errors.New("unknown hash method")
)

// Hashed is the storable form of a password: "<method>$<base64 digest>" plus
// the base64 salt it was derived with.
type Hashed struct {
	Hash string
	Salt string
}

type Hasher struct {
	method    string
	saltBytes int
}

func NewHasher(method string, saltBytes int) (*Hasher, error) {
	if method == "" {
		method = MethodArgon2id
	}
	if !Supported(method) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMethod, method)
	}
	if saltBytes <= 0 {
		saltBytes = DefaultSaltBytes
	}
	return &Hasher{method: method, saltBytes: saltBytes}, nil
}

func Supported(method string) bool {
	switch method {
	case MethodArgon2id, MethodSSHA512:
		return true
	}
	return false
}

func (h *Hasher) Method() string {
	return h.method
}

func (h *Hasher) Hash(plain string) (Hashed, error) {
	salt := make([]byte, h.saltBytes)
	if _, err := rand.Read(salt); err != nil {
		return Hashed{}, fmt.Errorf("read salt: %w", err)
	}
	digest, err := derive(h.method, []byte(plain), salt)
	if err != nil {
		return Hashed{}, err
	}
	return Hashed{
		Hash: h.method + "$" + base64.StdEncoding.EncodeToString(digest),
		Salt: base64.StdEncoding.EncodeToString(salt),
	}, nil
}

// Compare checks plain against a stored hash and salt. The method is read
// from the hash, so records written under an older method still verify.
func Compare(hash, salt, plain string) error {
	method, encoded, ok := strings.Cut(hash, "$")
	if !ok {
		return ErrMismatch
	}
	want, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return ErrMismatch
	}
	rawSalt, err := base64.StdEncoding.DecodeString(salt)
	if err != nil {
		return ErrMismatch
	}
	got, err := derive(method, []byte(plain), rawSalt)
	if err != nil {
		return err
	}
	if subtle.ConstantTimeCompare(got, want) != 1 {
		return ErrMismatch
	}
	return nil
}

func derive(method string, plain, salt []byte) ([]byte, error) {
	switch method {
	case MethodArgon2id:
		return argon2.IDKey(plain, salt, 1, 64*1024, 4, 32), nil
	case MethodSSHA512:
		h := sha512.New()
		h.Write(plain)
		h.Write(salt)
		return h.Sum(nil), nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownMethod, method)
}
