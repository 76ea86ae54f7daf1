// Package account implements account creation, import/export, and the
// 24-word recovery phrase encoding of an account's private key.
package account

import (
	"encoding/base64"
	"encoding/json"
	"regexp"
	"strings"

	qrcode "github.com/skip2/go-qrcode"

	"github.com/lockbook/lbcore/pkg/crypto"
	"github.com/lockbook/lbcore/pkg/lberr"
)

// Account is a local identity: a username, the server this account talks
// to, and the private key everything else derives from.
type Account struct {
	User       string `json:"username"`
	APIURL     string `json:"api_url"`
	PrivateKeyBytes []byte `json:"private_key"`
}

var usernamePattern = regexp.MustCompile(`^[a-z0-9]{1,32}$`)

// ValidateUsername checks the spec's username rule: lowercase, at most 32
// characters, [a-z0-9] only.
func ValidateUsername(username string) error {
	if !usernamePattern.MatchString(username) {
		return lberr.Of(lberr.UsernameInvalid)
	}
	return nil
}

// New constructs an Account around a freshly generated key pair.
func New(username, apiURL string) (Account, error) {
	if err := ValidateUsername(username); err != nil {
		return Account{}, err
	}
	priv, err := crypto.GeneratePrivateKey()
	if err != nil {
		return Account{}, err
	}
	return Account{User: username, APIURL: apiURL, PrivateKeyBytes: priv.Bytes()}, nil
}

// Username satisfies tree.KeyOwner.
func (a Account) Username() string { return a.User }

// PrivateKey satisfies tree.KeyOwner.
func (a Account) PrivateKey() crypto.PrivateKey {
	k, err := crypto.PrivateKeyFromBytes(a.PrivateKeyBytes)
	if err != nil {
		// PrivateKeyBytes is only ever populated by New, FromPhrase, or
		// Import, all of which validate length; this would indicate a
		// corrupted in-memory Account, not a user error.
		panic("account: invalid private key bytes: " + err.Error())
	}
	return k
}

// PublicKey derives the account's public key.
func (a Account) PublicKey() crypto.PublicKey {
	return a.PrivateKey().Public()
}

// Export serializes the account as a base64 string.
func (a Account) Export() (string, error) {
	b, err := json.Marshal(a)
	if err != nil {
		return "", lberr.UnexpectedErr("marshal account: %v", err)
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

// Import deserializes an account string produced by Export.
func Import(accountString string) (Account, error) {
	b, err := base64.StdEncoding.DecodeString(accountString)
	if err != nil {
		return Account{}, lberr.Of(lberr.AccountStringCorrupted)
	}
	var a Account
	if err := json.Unmarshal(b, &a); err != nil {
		return Account{}, lberr.Of(lberr.AccountStringCorrupted)
	}
	if _, err := crypto.PrivateKeyFromBytes(a.PrivateKeyBytes); err != nil {
		return Account{}, lberr.Of(lberr.AccountStringCorrupted)
	}
	return a, nil
}

// ExportQR renders the exported account string as a PNG QR code.
func (a Account) ExportQR() ([]byte, error) {
	s, err := a.Export()
	if err != nil {
		return nil, err
	}
	png, err := qrcode.Encode(s, qrcode.Medium, 256)
	if err != nil {
		return nil, lberr.UnexpectedErr("encode qr: %v", err)
	}
	return png, nil
}

// ExportPhrase renders the private key as a 24-word recovery phrase.
func (a Account) ExportPhrase() []string {
	return ToPhrase(a.PrivateKey())
}

// ImportFromPhrase reconstructs a private key from a 24-word recovery
// phrase. The caller (pkg/core) still needs to confirm the username against
// the server, per spec.md's import_from_phrase contract.
func ImportFromPhrase(username, apiURL string, words []string) (Account, error) {
	if err := ValidateUsername(username); err != nil {
		return Account{}, err
	}
	priv, err := FromPhrase(words)
	if err != nil {
		return Account{}, err
	}
	return Account{User: username, APIURL: apiURL, PrivateKeyBytes: priv.Bytes()}, nil
}

// NormalizePhrase splits a free-form phrase string into its 24 words.
func NormalizePhrase(phrase string) []string {
	fields := strings.Fields(phrase)
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = strings.ToLower(f)
	}
	return out
}
