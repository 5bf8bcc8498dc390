package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"otp-auth-service/internal/config"
	"otp-auth-service/internal/factory"
	"otp-auth-service/internal/util"

	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 30 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	// Initialize factory (which loads config and initializes all clients)
	f, err := factory.NewFactory(ctx)
	if err != nil {
		util.Fatal("Failed to initialize factory", util.ErrorField(err))
	}
	defer f.Close()

	if err := run(ctx, f); err != nil {
		util.Error("Server exited with error", util.ErrorField(err))
		f.Close()
		os.Exit(1)
	}
}

func run(ctx context.Context, f *factory.Factory) error {
	cfg := f.Config()
	router := f.Router()

	servers := buildServers(f, cfg, router)

	g, gctx := errgroup.WithContext(ctx)

	for _, srv := range servers {
		srv := srv
		g.Go(func() error {
			return serve(srv)
		})
	}

	otpService := f.ServiceFactory().OTPService()
	g.Go(func() error {
		return otpService.RunSweeper(gctx, cfg.OTP.SweepInterval)
	})

	if ipLimiter := f.IPRateLimiter(); ipLimiter != nil {
		g.Go(func() error {
			return ipLimiter.Run(gctx)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		util.Info("Shutting down servers")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		var errs []error
		for _, srv := range servers {
			if err := srv.server.Shutdown(shutdownCtx); err != nil {
				errs = append(errs, fmt.Errorf("shutdown %s: %w", srv.server.Addr, err))
			}
		}
		return errors.Join(errs...)
	})

	util.Info("Server started successfully",
		util.String("environment", cfg.Environment),
		util.Bool("tls_enabled", cfg.Server.EnableTLS),
		util.Bool("email_configured", otpService.MailConfigured()),
	)

	return g.Wait()
}

type listener struct {
	server *http.Server
	tls    bool
}

// buildServers returns the listeners to run: plain HTTP, HTTPS on
// TLS_PORT, or the ACME pair on :80/:443 in production.
func buildServers(f *factory.Factory, cfg *config.Config, router http.Handler) []listener {
	newServer := func(addr string, h http.Handler) *http.Server {
		return &http.Server{
			Addr:         addr,
			Handler:      h,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
			IdleTimeout:  cfg.Server.IdleTimeout,
		}
	}

	if !cfg.Server.EnableTLS {
		util.Warn("Starting HTTP server - TLS is disabled",
			util.String("environment", cfg.Environment),
			util.Int("port", cfg.Server.Port),
		)
		return []listener{{server: newServer(cfg.GetServerAddress(), router)}}
	}

	tlsManager := f.TLSManager()

	if cfg.IsProduction() && cfg.Server.AutoCert {
		autoCertManager := tlsManager.GetAutocertManager()
		if autoCertManager == nil {
			util.Fatal("AutoCert manager is not available in production")
		}
		httpsServer := newServer(":443", router)
		httpsServer.TLSConfig = tlsManager.GetTLSConfig()

		// Port 80 only answers ACME challenges and redirects.
		httpServer := newServer(":80", autoCertManager.HTTPHandler(nil))

		util.Info("Starting HTTPS server with AutoCert on port 443",
			util.String("domain", cfg.Server.Domain),
		)
		return []listener{{server: httpsServer, tls: true}, {server: httpServer}}
	}

	httpsServer := newServer(fmt.Sprintf(":%d", cfg.Server.TLSPort), router)
	httpsServer.TLSConfig = tlsManager.GetTLSConfig()

	util.Info("Starting HTTPS server",
		util.String("environment", cfg.Environment),
		util.Int("port", cfg.Server.TLSPort),
		util.Bool("auto_cert", cfg.Server.AutoCert),
	)
	return []listener{{server: httpsServer, tls: true}}
}

func serve(srv listener) error {
	var err error
	if srv.tls {
		// Certificates come from TLSConfig.GetCertificate.
		err = srv.server.ListenAndServeTLS("", "")
	} else {
		err = srv.server.ListenAndServe()
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server %s failed: %w", srv.server.Addr, err)
	}
	return nil
}
