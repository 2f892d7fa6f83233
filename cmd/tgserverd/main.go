// tgserverd runs the MTProto server: it loads the DC configuration,
// binds the RSA handshake key, registers the RPC operation factories
// and serves client transports.
package main

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/beevik/ntp"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/zeromicro/go-zero/core/conf"
	"go.uber.org/zap"
	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/xurwy/tgserver/internal/dcconfig"
	"github.com/xurwy/tgserver/internal/logutil"
	"github.com/xurwy/tgserver/internal/server"
	"github.com/xurwy/tgserver/internal/server/storage"
	"github.com/xurwy/tgserver/mtproto"
	"github.com/xurwy/tgserver/mtproto/crypto"
)

// Config is the YAML server configuration.
type Config struct {
	ListenAddr  string             `json:"listenAddr,default=:10443"`
	MetricsAddr string             `json:"metricsAddr,optional"`
	ThisDc      int32              `json:"thisDc,default=1"`
	DcOptions   []dcconfig.Option  `json:"dcOptions"`
	MongoUri    string             `json:"mongoUri,optional"`
	NtpServer   string             `json:"ntpServer,optional"`
}

var (
	configPath = kingpin.Flag("config", "Path to the YAML configuration.").Default("etc/tgserverd.yaml").String()
	keyPath    = kingpin.Flag("key", "PKCS#1 RSA private key; generated if absent.").Default("server.key").String()
	logLevel   = kingpin.Flag("log-level", "Log level.").Default("info").String()
)

func main() {
	kingpin.Parse()

	if err := logutil.Init(*logLevel); err != nil {
		kingpin.Fatalf("log init: %v", err)
	}
	logger := logutil.L("remote.connection")

	var c Config
	conf.MustLoad(*configPath, &c)

	rsaKey, err := loadOrGenerateKey(*keyPath)
	if err != nil {
		logger.Fatal("rsa key", zap.Error(err))
	}
	logger.Info("handshake key ready", zap.Int64("fingerprint", rsaKey.Fingerprint()))

	if c.NtpServer != "" {
		if offset, err := clockOffset(c.NtpServer); err != nil {
			logger.Warn("ntp probe failed", zap.Error(err))
		} else {
			mtproto.SetClockOffset(offset)
			logger.Info("clock offset applied", zap.Duration("offset", offset))
		}
	}

	var store storage.Store
	if c.MongoUri != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		store, err = storage.Connect(ctx, c.MongoUri)
		cancel()
		if err != nil {
			logger.Fatal("storage", zap.Error(err))
		}
		defer store.Close(context.Background())
	}

	api := server.NewServerApi(dcconfig.New(c.DcOptions), c.ThisDc, rsaKey, store)
	server.RegisterDefaultFactories(api)

	if c.MetricsAddr != "" {
		go func() {
			http.Handle("/metrics", promhttp.Handler())
			if err := http.ListenAndServe(c.MetricsAddr, nil); err != nil {
				logger.Warn("metrics server stopped", zap.Error(err))
			}
		}()
	}

	lis, err := net.Listen("tcp", c.ListenAddr)
	if err != nil {
		logger.Fatal("listen", zap.Error(err))
	}
	if err := server.NewServer(api).Serve(lis); err != nil {
		logger.Fatal("serve", zap.Error(err))
	}
}

func loadOrGenerateKey(path string) (*crypto.RSAKey, error) {
	if _, err := os.Stat(path); err == nil {
		return crypto.LoadRSAKey(path)
	}
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, err
	}
	block := &pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(priv)}
	if err := os.WriteFile(path, pem.EncodeToMemory(block), 0o600); err != nil {
		return nil, err
	}
	return crypto.NewRSAKey(priv), nil
}

func clockOffset(server string) (time.Duration, error) {
	resp, err := ntp.Query(server)
	if err != nil {
		return 0, err
	}
	if err := resp.Validate(); err != nil {
		return 0, err
	}
	return resp.ClockOffset, nil
}
