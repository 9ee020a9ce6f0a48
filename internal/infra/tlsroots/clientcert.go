package tlsroots

import (
	"context"
	"crypto/tls"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/yndnr/tokbroker/internal/telemetry/logger"
)

// ClientCert serves a client certificate that can be swapped while
// connections are being made.
type ClientCert struct {
	certFile string
	keyFile  string
	log      logger.Logger
	debounce time.Duration

	mu   sync.RWMutex
	cert *tls.Certificate
}

// ClientCertOption configures a ClientCert.
type ClientCertOption func(*ClientCert)

// WithLogger sets the logger.
func WithLogger(l logger.Logger) ClientCertOption {
	return func(c *ClientCert) {
		if l != nil {
			c.log = l
		}
	}
}

// WithDebounce sets how long Watch waits for writes to settle.
func WithDebounce(d time.Duration) ClientCertOption {
	return func(c *ClientCert) {
		if d > 0 {
			c.debounce = d
		}
	}
}

// NewClientCert loads the key pair once.
func NewClientCert(certFile, keyFile string, opts ...ClientCertOption) (*ClientCert, error) {
	c := &ClientCert{
		certFile: certFile,
		keyFile:  keyFile,
		log:      logger.Default(),
		debounce: 500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}

	if err := c.Reload(); err != nil {
		return nil, fmt.Errorf("tlsroots: initial load: %w", err)
	}
	return c, nil
}

// GetClientCertificate implements tls.Config.GetClientCertificate.
func (c *ClientCert) GetClientCertificate(*tls.CertificateRequestInfo) (*tls.Certificate, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cert, nil
}

// Reload reads the key pair from disk. On failure the previous
// certificate stays in use.
func (c *ClientCert) Reload() error {
	cert, err := tls.LoadX509KeyPair(c.certFile, c.keyFile)
	if err != nil {
		return fmt.Errorf("load key pair: %w", err)
	}

	c.mu.Lock()
	c.cert = &cert
	c.mu.Unlock()

	c.log.Info("client certificate loaded", "cert_file", c.certFile)
	return nil
}

// Watch reloads the certificate when either file changes until ctx is
// done. Directories are watched rather than files so that rename-style
// rotation is seen.
func (c *ClientCert) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("tlsroots: create watcher: %w", err)
	}
	defer w.Close()

	certDir := filepath.Dir(c.certFile)
	keyDir := filepath.Dir(c.keyFile)
	if err := w.Add(certDir); err != nil {
		return fmt.Errorf("tlsroots: watch %s: %w", certDir, err)
	}
	if keyDir != certDir {
		if err := w.Add(keyDir); err != nil {
			return fmt.Errorf("tlsroots: watch %s: %w", keyDir, err)
		}
	}

	certBase := filepath.Base(c.certFile)
	keyBase := filepath.Base(c.keyFile)

	// A rotation usually touches both files; reload once they settle.
	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			base := filepath.Base(event.Name)
			if base != certBase && base != keyBase {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			c.log.Debug("client certificate file changed", "file", event.Name, "op", event.Op.String())
			timer.Reset(c.debounce)

		case <-timer.C:
			if err := c.Reload(); err != nil {
				c.log.Error("client certificate reload failed",
					"error", err,
					"cert_file", c.certFile,
					"key_file", c.keyFile)
			}

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			c.log.Warn("certificate watcher error", "error", err)

		case <-ctx.Done():
			return nil
		}
	}
}
