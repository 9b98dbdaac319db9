package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/tbvdm/sigtop/internal/jsontok"
)

var errEncryptedKey = errors.New("database key is stored encrypted (encryptedKey) and cannot be exported")

func newExportKeyCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "export-key [file]",
		Aliases: []string{"key"},
		Short:   "Print the database encryption key",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := readEncryptionKey(a.cfg.keyFilePath())
			if err != nil {
				return err
			}
			if len(args) == 0 {
				return writeKey(cmd.OutOrStdout(), key)
			}

			f, err := os.OpenFile(args[0], os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
			if err != nil {
				return err
			}
			if err := writeKey(f, key); err != nil {
				f.Close()
				return err
			}
			return f.Close()
		},
	}
}

func writeKey(w io.Writer, key string) error {
	_, err := fmt.Fprintln(w, key)
	return err
}

func readEncryptionKey(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	key, err := encryptionKeyFromConfig(data)
	if err != nil {
		return "", fmt.Errorf("%s: %w", path, err)
	}
	return key, nil
}

// encryptionKeyFromConfig extracts the plaintext "key" field from the
// contents of Signal Desktop's config.json.
func encryptionKeyFromConfig(data []byte) (string, error) {
	doc, err := jsontok.Parse(data, jsontok.KeyStoreCapacity)
	if err != nil {
		return "", err
	}
	return keyFromDoc(doc)
}

func keyFromDoc(doc *jsontok.Doc) (string, error) {
	root, err := doc.Root()
	if err != nil {
		return "", err
	}

	idx, err := doc.Str(root, "key")
	if err != nil {
		return "", err
	}
	if idx < 0 {
		enc, err := doc.Str(root, "encryptedKey")
		if err != nil {
			return "", err
		}
		if enc >= 0 {
			return "", errEncryptedKey
		}
		return "", errors.New("encryption key not found")
	}
	return doc.Text(idx)
}
