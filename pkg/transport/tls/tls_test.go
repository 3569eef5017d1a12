package tls_test

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	stdnet "net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/mohankumar-rr-17944/gocxx/pkg/net"
	"github.com/mohankumar-rr-17944/gocxx/pkg/transport/tcp"
	"github.com/mohankumar-rr-17944/gocxx/pkg/transport/tls"
)

// selfSignedCert writes a throwaway CA-capable certificate for 127.0.0.1
// and its key as PEM files under the test's temp dir.
func selfSignedCert(t *testing.T) (certFile, keyFile string) {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatal(err)
	}

	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "127.0.0.1"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		IsCA:                  true,
		IPAddresses:           []stdnet.IP{stdnet.ParseIP("127.0.0.1")},
		DNSNames:              []string{"localhost"},
	}

	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatal(err)
	}

	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		t.Fatal(err)
	}

	dir := t.TempDir()
	certFile = filepath.Join(dir, "cert.pem")
	keyFile = filepath.Join(dir, "key.pem")

	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})

	if err := os.WriteFile(certFile, certPEM, 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(keyFile, keyPEM, 0o600); err != nil {
		t.Fatal(err)
	}

	return certFile, keyFile
}

func serveEcho(l *tls.Listener) {
	for {
		conn, err := l.Accept()
		if err != nil {
			return
		}

		go func() {
			defer conn.Close()

			buf := make([]byte, 1024)
			for {
				n, err := conn.Read(buf)
				if err != nil || n == 0 {
					return
				}
				if _, err = conn.Write(buf[:n]); err != nil {
					return
				}
			}
		}()
	}
}

func TestConfigValidation(t *testing.T) {
	certFile, _ := selfSignedCert(t)

	t.Run("ListenRequiresCertAndKey", func(t *testing.T) {
		_, err := tls.Listen("tcp", "127.0.0.1:0", &tls.Config{})
		assert.Error(t, err)

		_, err = tls.Listen("tcp", "127.0.0.1:0", &tls.Config{CertFile: certFile})
		assert.Error(t, err)
	})

	t.Run("DialCertWithoutKey", func(t *testing.T) {
		_, err := tls.Dial("tcp", "127.0.0.1:1", &tls.Config{
			InsecureSkipVerify: true,
			CertFile:           certFile,
		})
		assert.Error(t, err)
	})
}

func TestEcho(t *testing.T) {
	certFile, keyFile := selfSignedCert(t)

	l, err := tls.Listen("tcp", "127.0.0.1:0", &tls.Config{CertFile: certFile, KeyFile: keyFile})
	if !assert.NoError(t, err) {
		t.FailNow()
	}
	defer l.Close()

	go serveEcho(l)

	conn, err := tls.Dial("tcp", l.Addr().String(), &tls.Config{InsecureSkipVerify: true})
	if !assert.NoError(t, err) {
		t.FailNow()
	}
	defer conn.Close()

	msg := []byte("over the wire, under the hood")
	_, err = conn.Write(msg)
	assert.NoError(t, err)

	buf := make([]byte, 1024)
	n, err := conn.Read(buf)
	assert.NoError(t, err)
	assert.Equal(t, msg, buf[:n])
}

func TestCAFileTrust(t *testing.T) {
	certFile, keyFile := selfSignedCert(t)

	l, err := tls.Listen("tcp", "127.0.0.1:0", &tls.Config{CertFile: certFile, KeyFile: keyFile})
	if !assert.NoError(t, err) {
		t.FailNow()
	}
	defer l.Close()

	go serveEcho(l)

	conn, err := tls.Dial("tcp", l.Addr().String(), &tls.Config{CAFile: certFile})
	if assert.NoError(t, err, "dialing with the listener's own cert as CA should verify") {
		conn.Close()
	}
}

func TestVerifyFailure(t *testing.T) {
	certFile, keyFile := selfSignedCert(t)

	l, err := tls.Listen("tcp", "127.0.0.1:0", &tls.Config{CertFile: certFile, KeyFile: keyFile})
	if !assert.NoError(t, err) {
		t.FailNow()
	}
	defer l.Close()

	go serveEcho(l)

	_, err = tls.Dial("tcp", l.Addr().String(), &tls.Config{})
	assert.ErrorIs(t, err, tls.ErrHandshake,
		"a self-signed peer should not verify against the system store")
}

func TestAcceptSurvivesBadHandshake(t *testing.T) {
	certFile, keyFile := selfSignedCert(t)

	l, err := tls.Listen("tcp", "127.0.0.1:0", &tls.Config{CertFile: certFile, KeyFile: keyFile})
	if !assert.NoError(t, err) {
		t.FailNow()
	}
	defer l.Close()

	// A peer that speaks plaintext fails its handshake without taking the
	// listener down.
	garbage, err := tcp.Dial("tcp", l.Addr().String())
	if !assert.NoError(t, err) {
		t.FailNow()
	}
	garbage.Write([]byte("this is not a client hello"))
	defer garbage.Close()

	_, err = l.Accept()
	assert.ErrorIs(t, err, tls.ErrHandshake)

	dialed := make(chan error, 1)
	go func() {
		conn, err := tls.Dial("tcp", l.Addr().String(), &tls.Config{InsecureSkipVerify: true})
		if err == nil {
			conn.Close()
		}
		dialed <- err
	}()

	conn, err := l.Accept()
	if assert.NoError(t, err, "listener should keep accepting") {
		conn.Close()
	}
	assert.NoError(t, <-dialed)
}

func TestCleanShutdownReadsZero(t *testing.T) {
	certFile, keyFile := selfSignedCert(t)

	l, err := tls.Listen("tcp", "127.0.0.1:0", &tls.Config{CertFile: certFile, KeyFile: keyFile})
	if !assert.NoError(t, err) {
		t.FailNow()
	}
	defer l.Close()

	go func() {
		conn, err := l.Accept()
		if err != nil {
			return
		}
		conn.Write([]byte("bye"))
		conn.Close()
	}()

	conn, err := tls.Dial("tcp", l.Addr().String(), &tls.Config{InsecureSkipVerify: true})
	if !assert.NoError(t, err) {
		t.FailNow()
	}
	defer conn.Close()

	buf := make([]byte, 16)
	n, err := conn.Read(buf)
	assert.NoError(t, err)
	assert.Equal(t, "bye", string(buf[:n]))

	// Graceful shutdown surfaces as a zero-byte success, not an error.
	n, err = conn.Read(buf)
	assert.NoError(t, err)
	assert.Zero(t, n)
}

func TestDeadlineAsymmetry(t *testing.T) {
	certFile, keyFile := selfSignedCert(t)

	l, err := tls.Listen("tcp", "127.0.0.1:0", &tls.Config{CertFile: certFile, KeyFile: keyFile})
	if !assert.NoError(t, err) {
		t.FailNow()
	}
	defer l.Close()

	go serveEcho(l)

	t.Run("ReadTimeoutIsRetryable", func(t *testing.T) {
		conn, err := tls.Dial("tcp", l.Addr().String(), &tls.Config{InsecureSkipVerify: true})
		if !assert.NoError(t, err) {
			t.FailNow()
		}
		defer conn.Close()

		assert.NoError(t, conn.SetReadDeadline(time.Now().Add(50*time.Millisecond)))

		n, err := conn.Read(make([]byte, 16))
		assert.NoError(t, err, "an expired read deadline should look like no data yet")
		assert.Zero(t, n)

		// The session is still usable after the timeout.
		assert.NoError(t, conn.SetReadDeadline(time.Time{}))
		_, err = conn.Write([]byte("ping"))
		assert.NoError(t, err)

		buf := make([]byte, 16)
		n, err = conn.Read(buf)
		assert.NoError(t, err)
		assert.Equal(t, "ping", string(buf[:n]))
	})

	t.Run("WriteTimeoutSurfaces", func(t *testing.T) {
		conn, err := tls.Dial("tcp", l.Addr().String(), &tls.Config{InsecureSkipVerify: true})
		if !assert.NoError(t, err) {
			t.FailNow()
		}
		defer conn.Close()

		assert.NoError(t, conn.SetWriteDeadline(time.Now().Add(-time.Second)))

		_, err = conn.Write([]byte("ping"))
		assert.ErrorIs(t, err, net.ErrTimeout)
	})
}

func TestCloseIdempotent(t *testing.T) {
	certFile, keyFile := selfSignedCert(t)

	l, err := tls.Listen("tcp", "127.0.0.1:0", &tls.Config{CertFile: certFile, KeyFile: keyFile})
	if !assert.NoError(t, err) {
		t.FailNow()
	}

	go serveEcho(l)

	conn, err := tls.Dial("tcp", l.Addr().String(), &tls.Config{InsecureSkipVerify: true})
	if !assert.NoError(t, err) {
		t.FailNow()
	}

	assert.NoError(t, conn.Close())
	assert.NoError(t, conn.Close(), "second close should be a no-op")

	assert.NoError(t, l.Close())
	assert.NoError(t, l.Close(), "second close should be a no-op")
}
