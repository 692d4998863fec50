package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/Zereker/framer"
)

// config drives the echo server. Every field is optional; see defaultConfig.
type config struct {
	Listen       string `toml:"listen"`
	Header       string `toml:"header"`
	MaxFrameSize int    `toml:"max_frame_size"`
	SendQueue    int    `toml:"send_queue"`
	IdleTimeout  string `toml:"idle_timeout"`

	idleTimeout time.Duration
	extractor   framer.HeaderExtractor
}

func defaultConfig() config {
	return config{
		Listen:       "127.0.0.1:12345",
		Header:       "uint32be",
		MaxFrameSize: 1024 * 1024,
		SendQueue:    16,
		idleTimeout:  30 * time.Second,
		extractor:    framer.NewUInt32BEExtractor(),
	}
}

// extractorByName maps the header layout names accepted in the config file
// to the standard extractor catalog.
func extractorByName(name string) (framer.HeaderExtractor, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "int8":
		return framer.NewInt8Extractor(), nil
	case "uint8":
		return framer.NewUInt8Extractor(), nil
	case "int16be":
		return framer.NewInt16BEExtractor(), nil
	case "uint16be":
		return framer.NewUInt16BEExtractor(), nil
	case "int16le":
		return framer.NewInt16LEExtractor(), nil
	case "uint16le":
		return framer.NewUInt16LEExtractor(), nil
	case "int32be":
		return framer.NewInt32BEExtractor(), nil
	case "uint32be":
		return framer.NewUInt32BEExtractor(), nil
	case "int32le":
		return framer.NewInt32LEExtractor(), nil
	case "uint32le":
		return framer.NewUInt32LEExtractor(), nil
	}
	return nil, fmt.Errorf("unknown header layout %q", name)
}

func loadConfig(path string) (config, error) {
	cfg := defaultConfig()

	var raw config
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return config{}, fmt.Errorf("load config: %w", err)
	}

	if meta.IsDefined("listen") {
		cfg.Listen = strings.TrimSpace(raw.Listen)
	}

	if meta.IsDefined("header") {
		extractor, err := extractorByName(raw.Header)
		if err != nil {
			return config{}, err
		}
		cfg.Header = raw.Header
		cfg.extractor = extractor
	}

	if meta.IsDefined("max_frame_size") {
		cfg.MaxFrameSize = raw.MaxFrameSize
	}

	if meta.IsDefined("send_queue") {
		cfg.SendQueue = raw.SendQueue
	}

	if meta.IsDefined("idle_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.IdleTimeout))
		if err != nil {
			return config{}, fmt.Errorf("parse idle_timeout: %w", err)
		}
		cfg.idleTimeout = d
	}

	return cfg, nil
}

// echoHandler echoes every complete frame back to its sender. The frame
// already carries its length prefix, so it goes back on the wire verbatim.
type echoHandler struct {
	cfg    config
	connID int64

	sync.RWMutex
	connections map[int64]*framer.Conn
}

func newEchoHandler(cfg config) *echoHandler {
	return &echoHandler{cfg: cfg, connections: make(map[int64]*framer.Conn)}
}

func (h *echoHandler) Handle(conn *net.TCPConn) {
	connID := atomic.AddInt64(&h.connID, 1)

	onFrame := framer.OnFrameOption(func(frame []byte) {
		conn := h.getConn(connID)
		if conn == nil {
			return
		}
		if err := conn.Write(frame); err != nil {
			slog.Error("echo write failed", "connID", connID, "error", err)
		}
	})
	onDecodeError := framer.OnDecodeErrorOption(func(err error) {
		slog.Error("frame decode error", "connID", connID, "error", err)
	})

	newConn, err := framer.NewConn(conn, h.cfg.extractor,
		onFrame,
		onDecodeError,
		framer.MaxFrameSizeOption(h.cfg.MaxFrameSize),
		framer.SendQueueSizeOption(h.cfg.SendQueue),
		framer.IdleTimeoutOption(h.cfg.idleTimeout),
	)
	if err != nil {
		slog.Error("failed to create connection", "connID", connID, "error", err)
		conn.Close()
		return
	}

	h.addConn(connID, newConn)

	if err = newConn.Run(context.Background()); err != nil {
		h.deleteConn(connID)
	}
}

func (h *echoHandler) addConn(connID int64, conn *framer.Conn) {
	h.Lock()
	defer h.Unlock()

	slog.Info("add new conn", "connID", connID, "addr", conn.Addr())
	h.connections[connID] = conn
}

func (h *echoHandler) deleteConn(connID int64) {
	h.Lock()
	defer h.Unlock()

	delete(h.connections, connID)
}

func (h *echoHandler) getConn(connID int64) *framer.Conn {
	h.RLock()
	defer h.RUnlock()

	if conn, ok := h.connections[connID]; ok {
		return conn
	}

	return nil
}

func main() {
	configPath := flag.String("config", "config.toml", "path to the TOML config file")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		slog.Error("failed to load config", "path", *configPath, "error", err)
		os.Exit(1)
	}

	addr, err := net.ResolveTCPAddr("tcp", cfg.Listen)
	if err != nil {
		slog.Error("failed to resolve listen address", "listen", cfg.Listen, "error", err)
		os.Exit(1)
	}

	server, err := framer.NewServer(addr)
	if err != nil {
		slog.Error("failed to create server", "error", err)
		os.Exit(1)
	}

	// Handle graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		slog.Info("shutting down server...")
		cancel()
	}()

	slog.Info("server start", "addr", addr.String(), "header", cfg.Header)
	if err := server.Serve(ctx, newEchoHandler(cfg)); err != nil {
		slog.Error("server error", "error", err)
	}
}
