// Package tls implements the key-material provider. It manages
// tls:PrivateKey resources: an RSA key pair generated on demand, the
// private half written to disk readable by its owner only, the public
// half exposed as computed attributes (OpenSSH form plus a SHA256
// fingerprint) for other resources to reference.
//
// Key material is never placed in resource outputs; only the fingerprint
// reaches the state store, which is enough to detect drift without
// storing a secret.
package tls

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/crypto/ssh"

	"github.com/picket-io/picket/internal/provider"
)

const ResourceType = "tls:PrivateKey"

const defaultBits = 4096

type Provider struct{}

func New() *Provider {
	return &Provider{}
}

func Factory(settings map[string]string) (provider.Provider, error) {
	return New(), nil
}

// PersistenceError reports a secret that could not be written or secured.
// Always fatal: a partially secured secret is worse than no secret, so
// the engine must not retry it.
type PersistenceError struct {
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("failed to persist private key to %s: %v", e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func (p *Provider) Schema(resourceType string) (*provider.Schema, error) {
	if resourceType != ResourceType {
		return nil, fmt.Errorf("tls provider does not manage %s", resourceType)
	}
	return &provider.Schema{
		Attributes: map[string]provider.AttrType{
			"bits": provider.TypeNumber,
			"path": provider.TypeString,
		},
		Required: []string{"path"},
	}, nil
}

func (p *Provider) Create(ctx context.Context, req *provider.CreateRequest) (*provider.CreateResponse, error) {
	path, _ := req.Attributes["path"].(string)
	bits := defaultBits
	if n, ok := req.Attributes["bits"].(float64); ok && n > 0 {
		bits = int(n)
	}
	if n, ok := req.Attributes["bits"].(int); ok && n > 0 {
		bits = n
	}

	computed, err := generate(path, bits)
	if err != nil {
		return nil, wrapFatal("create", err)
	}
	return &provider.CreateResponse{ProviderID: path, Computed: computed}, nil
}

// Update regenerates the key pair. The engine only calls this when the
// declared attributes changed; an unchanged declaration is a no-op at the
// engine level, which is what keeps established credentials from being
// rotated by a routine re-apply.
func (p *Provider) Update(ctx context.Context, req *provider.UpdateRequest) (*provider.UpdateResponse, error) {
	path, _ := req.Attributes["path"].(string)
	bits := defaultBits
	if n, ok := req.Attributes["bits"].(float64); ok && n > 0 {
		bits = int(n)
	}

	computed, err := generate(path, bits)
	if err != nil {
		return nil, wrapFatal("update", err)
	}
	// A moved key file keeps state pointing at what is actually on disk.
	if path != req.ProviderID {
		if err := os.Remove(req.ProviderID); err != nil && !os.IsNotExist(err) {
			return nil, wrapFatal("update", &PersistenceError{Path: req.ProviderID, Err: err})
		}
	}
	return &provider.UpdateResponse{ProviderID: path, Computed: computed}, nil
}

func (p *Provider) Destroy(ctx context.Context, req *provider.DestroyRequest) error {
	if req.ProviderID == "" {
		return nil
	}
	if err := os.Remove(req.ProviderID); err != nil && !os.IsNotExist(err) {
		return wrapFatal("destroy", &PersistenceError{Path: req.ProviderID, Err: err})
	}
	return nil
}

// Get re-derives the fingerprint from the key on disk, surfacing drift
// when the file was replaced or removed out of band.
func (p *Provider) Get(ctx context.Context, req *provider.GetRequest) (*provider.GetResponse, error) {
	raw, err := os.ReadFile(req.ProviderID)
	if os.IsNotExist(err) {
		return nil, provider.ErrNotFound
	}
	if err != nil {
		return nil, wrapFatal("get", &PersistenceError{Path: req.ProviderID, Err: err})
	}

	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, wrapFatal("get", fmt.Errorf("%s is not a PEM private key", req.ProviderID))
	}
	key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		return nil, wrapFatal("get", fmt.Errorf("failed to parse %s: %w", req.ProviderID, err))
	}
	return &provider.GetResponse{Computed: publicAttributes(key, req.ProviderID)}, nil
}

// generate creates the key pair and persists the private half with
// owner-only access. Failure anywhere leaves no half-secured file behind.
func generate(path string, bits int) (map[string]any, error) {
	key, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, fmt.Errorf("failed to generate RSA key: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, &PersistenceError{Path: path, Err: err}
	}

	pemBytes := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return nil, &PersistenceError{Path: path, Err: err}
	}
	if _, err := f.Write(pemBytes); err != nil {
		f.Close()
		os.Remove(path)
		return nil, &PersistenceError{Path: path, Err: err}
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return nil, &PersistenceError{Path: path, Err: err}
	}

	// The mode passed to OpenFile is subject to umask; enforce it.
	if err := os.Chmod(path, 0o600); err != nil {
		os.Remove(path)
		return nil, &PersistenceError{Path: path, Err: err}
	}

	return publicAttributes(key, path), nil
}

func publicAttributes(key *rsa.PrivateKey, path string) map[string]any {
	sshPub, err := ssh.NewPublicKey(&key.PublicKey)
	if err != nil {
		// An RSA public key always marshals; treated as unreachable.
		panic(fmt.Sprintf("failed to convert RSA public key: %v", err))
	}
	return map[string]any{
		"id":               path,
		"path":             path,
		"publicKeyOpenssh": string(ssh.MarshalAuthorizedKey(sshPub)),
		"fingerprint":      ssh.FingerprintSHA256(sshPub),
	}
}

func wrapFatal(op string, err error) error {
	return &provider.Error{Op: op, Type: ResourceType, Retryable: false, Err: err}
}
