package main

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	_ "github.com/mattn/go-sqlite3" // SQLite3 driver
	"github.com/user/veilworld/config"
	"github.com/user/veilworld/internal/cipher"
	"github.com/user/veilworld/internal/ledger"
	"github.com/user/veilworld/internal/oracle"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "./config/config.json", "Path to configuration file")
	flag.Parse()

	// Set up logger
	logger := setupLogger()
	defer logger.Sync()

	// Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	// Set up the cipher capability
	key, err := cipherKey(cfg)
	if err != nil {
		logger.Fatal("Failed to load cipher key", zap.Error(err))
	}
	padCipher := cipher.NewPadCipher(key)

	// Set up the decryption oracle
	orc, err := oracle.New(padCipher, logger)
	if err != nil {
		logger.Fatal("Failed to create oracle", zap.Error(err))
	}

	// Initialize the ledger manager
	manager := ledger.NewManager(cfg, padCipher, orc, oracle.NewVerifier(orc.PublicKey()))
	manager.SetLogger(logger)
	manager.SetEventSink(ledger.NewZapEventSink(logger))

	// Attach the append-only journal
	if cfg.Database.DSN != "" {
		journal, err := ledger.OpenJournal(cfg.Database.Driver, cfg.Database.DSN)
		if err != nil {
			logger.Fatal("Failed to open ledger journal", zap.Error(err))
		}
		defer journal.Close()
		manager.SetJournal(journal)
	}

	// Set up HTTP server
	server := setupHTTPServer(cfg, manager, padCipher, logger)

	// Start HTTP server
	go func() {
		logger.Info("Starting HTTP server", zap.String("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server stopped", zap.Error(err))
		}
	}()

	// Start asynchronous callback delivery after everything else is initialized
	interval := time.Duration(cfg.Oracle.PumpIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = 2 * time.Second
	}
	orc.StartPump(manager, interval)
	defer orc.StopPump()

	// Wait for shutdown signal
	waitForShutdown(logger)
}

func setupLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}

// cipherKey decodes the configured cipher key, generating a fresh one when
// the configuration leaves it empty.
func cipherKey(cfg config.Config) ([]byte, error) {
	if cfg.Oracle.CipherKey != "" {
		return hex.DecodeString(cfg.Oracle.CipherKey)
	}
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}
	return key, nil
}

// writeJSON writes a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps ledger errors onto HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ledger.ErrNotFound), errors.Is(err, ledger.ErrUnknownPlayer):
		status = http.StatusNotFound
	case errors.Is(err, ledger.ErrUnknownRequest):
		status = http.StatusConflict
	case errors.Is(err, ledger.ErrAlreadyResolved):
		status = http.StatusConflict
	case errors.Is(err, ledger.ErrInvalidProof):
		status = http.StatusForbidden
	case errors.Is(err, ledger.ErrUnauthorizedCaller):
		status = http.StatusUnauthorized
	case errors.Is(err, ledger.ErrMalformedCleartext), errors.Is(err, cipher.ErrUninitialized), errors.Is(err, cipher.ErrBadWireFormat):
		status = http.StatusBadRequest
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// parseCiphertext decodes a hex-encoded ciphertext wire form.
func parseCiphertext(s string) (cipher.Ciphertext, error) {
	data, err := hex.DecodeString(s)
	if err != nil {
		return cipher.Ciphertext{}, cipher.ErrBadWireFormat
	}
	return cipher.FromOracleWireFormat(data)
}

func parsePlayerID(r *http.Request) (uint64, error) {
	return strconv.ParseUint(chi.URLParam(r, "playerID"), 10, 64)
}

func setupHTTPServer(cfg config.Config, manager *ledger.Manager, padCipher *cipher.PadCipher, logger *zap.Logger) *http.Server {
	// Create router
	router := chi.NewRouter()
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	// Set up routes
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	router.Get("/healthcheck", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	// Player registration
	router.Post("/players", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			PositionX string `json:"position_x"`
			PositionY string `json:"position_y"`
			Health    string `json:"health"`
			Resources string `json:"resources"`
			ZoneName  string `json:"zone_name"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request", http.StatusBadRequest)
			return
		}

		fields := make([]cipher.Ciphertext, 4)
		for i, s := range []string{req.PositionX, req.PositionY, req.Health, req.Resources} {
			c, err := parseCiphertext(s)
			if err != nil {
				writeError(w, err)
				return
			}
			fields[i] = c
		}

		playerID, ownerToken, err := manager.Register(fields[0], fields[1], fields[2], fields[3], req.ZoneName)
		if err != nil {
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, map[string]interface{}{
			"player_id":   playerID,
			"owner_token": ownerToken,
		})
	})

	// Player record (ciphertext handles stay opaque; only metadata is shown)
	router.Get("/players/{playerID}", func(w http.ResponseWriter, r *http.Request) {
		playerID, err := parsePlayerID(r)
		if err != nil {
			http.Error(w, "Invalid player id", http.StatusBadRequest)
			return
		}

		player, err := manager.Get(playerID)
		if err != nil {
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]interface{}{
			"player_id":        player.ID,
			"home_zone":        player.HomeZone,
			"last_action_time": player.LastActionTime,
		})
	})

	// Action submission (owner scoped)
	router.Post("/players/{playerID}/actions", func(w http.ResponseWriter, r *http.Request) {
		playerID, err := parsePlayerID(r)
		if err != nil {
			http.Error(w, "Invalid player id", http.StatusBadRequest)
			return
		}

		var req struct {
			OwnerToken string `json:"owner_token"`
			ActionType string `json:"action_type"`
			Direction  string `json:"direction"`
			TargetID   string `json:"target_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request", http.StatusBadRequest)
			return
		}

		fields := make([]cipher.Ciphertext, 3)
		for i, s := range []string{req.ActionType, req.Direction, req.TargetID} {
			c, err := parseCiphertext(s)
			if err != nil {
				writeError(w, err)
				return
			}
			fields[i] = c
		}

		requestID, err := manager.SubmitAction(r.Context(), playerID, req.OwnerToken, fields[0], fields[1], fields[2])
		if err != nil {
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusAccepted, map[string]string{
			"request_id": requestID,
		})
	})

	// Outcome query
	router.Get("/players/{playerID}/outcome", func(w http.ResponseWriter, r *http.Request) {
		playerID, err := parsePlayerID(r)
		if err != nil {
			http.Error(w, "Invalid player id", http.StatusBadRequest)
			return
		}

		outcome, err := manager.GetOutcome(playerID)
		if err != nil {
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, outcome)
	})

	// Zone listing
	router.Get("/zones", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"zones": manager.ZoneNames(),
		})
	})

	// Zone count query
	router.Post("/zones/{zone}/count-requests", func(w http.ResponseWriter, r *http.Request) {
		requestID, err := manager.RequestZoneCount(r.Context(), chi.URLParam(r, "zone"))
		if err != nil {
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusAccepted, map[string]string{
			"request_id": requestID,
		})
	})

	router.Get("/zones/{zone}/reading", func(w http.ResponseWriter, r *http.Request) {
		count, hasReading, err := manager.ZoneReading(chi.URLParam(r, "zone"))
		if err != nil {
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]interface{}{
			"count":       count,
			"has_reading": hasReading,
		})
	})

	// Oracle callback endpoint for an out-of-process oracle deployment.
	// The embedded pump bypasses HTTP and calls Resolve directly.
	router.Post("/oracle/resolve", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			RequestID  string   `json:"request_id"`
			Cleartexts []string `json:"cleartexts"`
			Proof      string   `json:"proof"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request", http.StatusBadRequest)
			return
		}

		proof, err := hex.DecodeString(req.Proof)
		if err != nil {
			http.Error(w, "Invalid proof encoding", http.StatusBadRequest)
			return
		}

		if err := manager.Resolve(req.RequestID, req.Cleartexts, proof); err != nil {
			writeError(w, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	})

	// Client-side encryption stand-in for the simulated scheme
	router.Post("/debug/encrypt", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Value uint64 `json:"value"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request", http.StatusBadRequest)
			return
		}

		c := padCipher.Encrypt(req.Value)
		writeJSON(w, http.StatusOK, map[string]string{
			"ciphertext": hex.EncodeToString(padCipher.OracleWireFormat(c)),
		})
	})

	// Create HTTP server
	return &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}
}

func waitForShutdown(logger *zap.Logger) {
	// Set up channel for shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Wait for shutdown signal
	sig := <-sigChan
	logger.Info("Received shutdown signal", zap.String("signal", sig.String()))

	// Perform cleanup
	logger.Info("Shutting down")
}
