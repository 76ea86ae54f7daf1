package core

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/lockbook/lbcore/pkg/account"
	"github.com/lockbook/lbcore/pkg/apiclient"
	"github.com/lockbook/lbcore/pkg/crypto"
	"github.com/lockbook/lbcore/pkg/lberr"
	"github.com/lockbook/lbcore/pkg/model"
)

// CreateAccount generates a new identity, registers it with apiURL's
// server, creates the root folder, and persists both locally. Fails with
// AccountExists if this store already has an account.
func (c *Core) CreateAccount(ctx context.Context, username, apiURL string) error {
	if c.account != nil {
		return lberr.Of(lberr.AccountExists)
	}

	acc, err := account.New(username, apiURL)
	if err != nil {
		return err
	}

	rootKey := crypto.NewFileKey()
	encName, err := model.EncryptName(rootKey, username)
	if err != nil {
		return err
	}
	wrapped, err := crypto.WrapAsymmetric(rootKey, acc.PublicKey())
	if err != nil {
		return err
	}

	root := model.UnsignedFile{
		ID:             uuid.New(),
		Type:           model.Folder,
		Name:           encName,
		Owner:          model.NewOwner(acc.PublicKey()),
		UserAccessKeys: map[string]model.WrappedKey{username: wrapped},
	}
	root.Parent = root.ID

	signedRoot, err := model.Sign(root, acc.PrivateKey(), c.clock.NowMillis())
	if err != nil {
		return err
	}

	client := apiclient.New(apiURL, acc.PrivateKey())
	if _, err := client.NewAccount(ctx, apiclient.NewAccountRequest{
		Username:   username,
		PublicKey:  acc.PublicKey().Bytes(),
		RootFolder: signedRoot,
	}); err != nil {
		return err
	}

	return c.commitNewAccount(acc, signedRoot)
}

func (c *Core) commitNewAccount(acc account.Account, root model.SignedFile) error {
	raw, err := json.Marshal(acc)
	if err != nil {
		return lberr.UnexpectedErr("marshal account: %v", err)
	}
	c.store.Lock()
	defer c.store.Unlock()
	if err := c.store.SetAccount(raw); err != nil {
		return err
	}
	if err := c.store.SetRoot(root.Unsigned().ID); err != nil {
		return err
	}
	if err := c.store.SaveTrees(map[uuid.UUID]model.SignedFile{root.Unsigned().ID: root}, nil); err != nil {
		return err
	}
	c.setAccount(acc)
	return nil
}

// ImportAccount restores an account from an exported account string,
// confirming against the server that the username still resolves to this
// key pair, then syncing to populate the local tree.
func (c *Core) ImportAccount(ctx context.Context, accountString string) error {
	if c.account != nil {
		return lberr.Of(lberr.AccountExists)
	}
	acc, err := account.Import(accountString)
	if err != nil {
		return err
	}
	return c.importAndSync(ctx, acc)
}

// ImportFromPhrase restores an account from a 24-word recovery phrase,
// given the username and server.
func (c *Core) ImportFromPhrase(ctx context.Context, username, apiURL string, words []string) error {
	if c.account != nil {
		return lberr.Of(lberr.AccountExists)
	}
	acc, err := account.ImportFromPhrase(username, apiURL, words)
	if err != nil {
		return err
	}
	return c.importAndSync(ctx, acc)
}

func (c *Core) importAndSync(ctx context.Context, acc account.Account) error {
	client := apiclient.New(acc.APIURL, acc.PrivateKey())
	resp, err := client.GetPublicKey(ctx, acc.User)
	if err != nil {
		return err
	}
	pub := acc.PublicKey()
	if string(resp.PublicKey) != string(pub.Bytes()) {
		return lberr.Of(lberr.UsernamePublicKeyMismatch)
	}

	raw, err := json.Marshal(acc)
	if err != nil {
		return lberr.UnexpectedErr("marshal account: %v", err)
	}
	c.store.Lock()
	if err := c.store.SetAccount(raw); err != nil {
		c.store.Unlock()
		return err
	}
	c.store.Unlock()

	c.setAccount(acc)
	if err := c.engine.Sync(ctx, nil); err != nil {
		return err
	}
	c.store.Lock()
	defer c.store.Unlock()
	base, err := c.store.LoadBaseMetadata()
	if err != nil {
		return err
	}
	for id, f := range base {
		if uf := f.Unsigned(); uf.IsRoot() && uf.Owner.Equal(model.NewOwner(pub)) {
			return c.store.SetRoot(id)
		}
	}
	return nil
}

// ExportAccount serializes the local account for transfer to another
// device.
func (c *Core) ExportAccount() (string, error) {
	acc, err := c.requireAccount()
	if err != nil {
		return "", err
	}
	return acc.Export()
}

// ExportAccountQR renders the exported account string as a PNG QR code.
func (c *Core) ExportAccountQR() ([]byte, error) {
	acc, err := c.requireAccount()
	if err != nil {
		return nil, err
	}
	return acc.ExportQR()
}

// ExportAccountPhrase renders the account's private key as a 24-word
// recovery phrase.
func (c *Core) ExportAccountPhrase() ([]string, error) {
	acc, err := c.requireAccount()
	if err != nil {
		return nil, err
	}
	return acc.ExportPhrase(), nil
}

// DeleteAccount removes the account from the server, then clears the local
// account, root id, last-sync marker and file metadata. The public-key
// cache, the activity log and the document blobs are left in place.
func (c *Core) DeleteAccount(ctx context.Context) error {
	if _, err := c.requireAccount(); err != nil {
		return err
	}
	if err := c.client.DeleteAccount(ctx); err != nil {
		return err
	}

	c.store.Lock()
	defer c.store.Unlock()
	if err := c.store.ClearAccount(); err != nil {
		return err
	}
	if err := c.store.SaveTrees(nil, nil); err != nil {
		return err
	}
	c.account = nil
	c.client = nil
	c.engine = nil
	return nil
}
