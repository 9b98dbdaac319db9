package main

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tbvdm/sigtop/internal/jsontok"
)

func TestEncryptionKeyFromConfig(t *testing.T) {
	t.Parallel()

	key, err := encryptionKeyFromConfig([]byte(`{"mediaPermissions": true, "key": "0123abcd"}`))
	if err != nil {
		t.Fatalf("read key: %v", err)
	}
	if key != "0123abcd" {
		t.Fatalf("key: got=%q want=%q", key, "0123abcd")
	}
}

func TestEncryptionKeyFromConfigErrors(t *testing.T) {
	t.Parallel()

	if _, err := encryptionKeyFromConfig([]byte(`{"encryptedKey": "763130abcd"}`)); !errors.Is(err, errEncryptedKey) {
		t.Fatalf("encrypted key: got err=%v want errEncryptedKey", err)
	}
	if _, err := encryptionKeyFromConfig([]byte(`["key"]`)); !errors.Is(err, jsontok.ErrStructure) {
		t.Fatalf("array root: got err=%v want ErrStructure", err)
	}
	if _, err := encryptionKeyFromConfig([]byte(`{"key": 12}`)); err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("numeric key: got err=%v want not found", err)
	}
	if _, err := encryptionKeyFromConfig([]byte(`{"key": "abc"`)); !errors.Is(err, jsontok.ErrSyntax) {
		t.Fatalf("truncated config: got err=%v want ErrSyntax", err)
	}

	big := `{"pad":[` + strings.Repeat("0,", 80) + `0],"key":"abc"}`
	if _, err := encryptionKeyFromConfig([]byte(big)); !errors.Is(err, jsontok.ErrCapacity) {
		t.Fatalf("oversized config: got err=%v want ErrCapacity", err)
	}
}

func TestKeyFromDocReportsBadEncryptedKeyLookup(t *testing.T) {
	t.Parallel()

	// The second key token has no value, so only the lookup that scans
	// past "key" runs into it.
	json := []byte(`{"key":1,"encryptedKey":"x"}`)
	doc := &jsontok.Doc{JSON: json, Tokens: []jsontok.Token{
		{Kind: jsontok.Object, Start: 0, End: 28, Size: 2},
		{Kind: jsontok.String, Start: 2, End: 5, Size: 1},
		{Kind: jsontok.Primitive, Start: 7, End: 8},
		{Kind: jsontok.String, Start: 10, End: 22},
		{Kind: jsontok.String, Start: 25, End: 26},
	}}
	if _, err := keyFromDoc(doc); !errors.Is(err, jsontok.ErrStructure) {
		t.Fatalf("bad encryptedKey token: got err=%v want ErrStructure", err)
	}
}

func TestReadEncryptionKeyNamesFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{}`), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	_, err := readEncryptionKey(path)
	if err == nil || !strings.HasPrefix(err.Error(), path+": ") {
		t.Fatalf("missing key: got err=%v want error naming %s", err, path)
	}
}
