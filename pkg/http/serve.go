package xhttp

import (
	"net"
	"reflect"
	"runtime"
	"slices"
	"time"

	"github.com/nimasrn/voucher-wallet/pkg/logger"
	"github.com/valyala/fasthttp"
)

// ServerOption carries the fasthttp knobs the api binary tunes. Zero values
// fall back to DefaultServerOption when passed through NewServer.
type ServerOption struct {
	Name               string
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	IdleTimeout        time.Duration
	RequestTimeout     time.Duration
	ReadBufferSize     int // also the max header size
	WriteBufferSize    int
	MaxRequestBodySize int
	Concurrency        int
	MaxConnsPerIP      int
	CompressionLevel   int
	ConnState          func(net.Conn, fasthttp.ConnState)
	Logger             logger.Logger
}

var DefaultServerOption = ServerOption{
	Name:               "voucher-wallet",
	ReadTimeout:        2500 * time.Millisecond,
	WriteTimeout:       2500 * time.Millisecond,
	IdleTimeout:        10 * time.Second,
	RequestTimeout:     5 * time.Second,
	ReadBufferSize:     16 * 1024,
	WriteBufferSize:    16 * 1024,
	MaxRequestBodySize: 1 * 1024 * 1024, // wallet and voucher payloads are small
	Concurrency:        30_000,
	MaxConnsPerIP:      10_000,
	CompressionLevel:   fasthttp.CompressBestSpeed,
}

func (o ServerOption) withDefaults() ServerOption {
	d := DefaultServerOption
	if o.Name == "" {
		o.Name = d.Name
	}
	if o.ReadTimeout <= 0 {
		o.ReadTimeout = d.ReadTimeout
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = d.WriteTimeout
	}
	if o.IdleTimeout <= 0 {
		o.IdleTimeout = d.IdleTimeout
	}
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = d.RequestTimeout
	}
	if o.ReadBufferSize <= 0 {
		o.ReadBufferSize = d.ReadBufferSize
	}
	if o.WriteBufferSize <= 0 {
		o.WriteBufferSize = d.WriteBufferSize
	}
	if o.MaxRequestBodySize <= 0 {
		o.MaxRequestBodySize = d.MaxRequestBodySize
	}
	if o.Concurrency <= 0 {
		o.Concurrency = d.Concurrency
	}
	if o.MaxConnsPerIP <= 0 {
		o.MaxConnsPerIP = d.MaxConnsPerIP
	}
	if o.CompressionLevel <= 0 {
		o.CompressionLevel = d.CompressionLevel
	}
	if o.Logger == nil {
		o.Logger = logger.GetLogger()
	}
	return o
}

type Server = fasthttp.Server

type Engine struct {
	*Router
	*Server
	option ServerOption
	middle []MiddlewareFunc
}

func NewServer(options ServerOption) *Engine {
	options = options.withDefaults()
	return &Engine{
		Server: &fasthttp.Server{
			Name:                         options.Name,
			ReadTimeout:                  options.ReadTimeout,
			WriteTimeout:                 options.WriteTimeout,
			IdleTimeout:                  options.IdleTimeout,
			ReadBufferSize:               options.ReadBufferSize,
			WriteBufferSize:              options.WriteBufferSize,
			MaxRequestBodySize:           options.MaxRequestBodySize,
			Concurrency:                  options.Concurrency,
			MaxConnsPerIP:                options.MaxConnsPerIP,
			ConnState:                    options.ConnState,
			Logger:                       options.Logger,
			TCPKeepalive:                 true,
			CloseOnShutdown:              true,
			NoDefaultServerHeader:        true,
			NoDefaultContentType:         true,
			DisablePreParseMultipartForm: true,
			ErrorHandler: func(ctx *RequestCtx, err error) {
				logger.Warn("[xhttp] request error", "path", string(ctx.Path()), "error", err)
				jsonError(ctx, StatusBadRequest)
			},
		},
		Router: CreateDefaultRouter(),
		option: options,
	}
}

// Option returns the effective options after defaults were applied.
func (e *Engine) Option() ServerOption { return e.option }

// Use appends a middleware. The first registered middleware is the outermost.
func (e *Engine) Use(middleware MiddlewareFunc) {
	e.middle = append(e.middle, middleware)
}

// DoRouting builds the final handler chain. It is called by ListenAndServe
// and exposed for tests that drive the handler without a listener.
func (e *Engine) DoRouting() RequestHandler {
	for method, routes := range e.Router.List() {
		for _, r := range routes {
			logger.Debug("[xhttp] route registered", "method", method, "path", r)
		}
	}
	h := e.Router.Handler
	middle := slices.Clone(e.middle)
	slices.Reverse(middle)
	for i, m := range middle {
		h = m(h)
		logger.Debug("[xhttp] middleware registered", "position", len(middle)-i,
			"name", runtime.FuncForPC(reflect.ValueOf(m).Pointer()).Name())
	}
	e.Server.Handler = h
	return h
}

func (e *Engine) ListenAndServe(addr string) error {
	e.DoRouting()
	logger.Info("[xhttp] server is listening", "addr", addr)
	return e.Server.ListenAndServe(addr)
}

func (e *Engine) Serve(ln net.Listener) error {
	e.DoRouting()
	return e.Server.Serve(ln)
}

// Shutdown waits for active connections to finish.
func (e *Engine) Shutdown() {
	logger.Info("[xhttp] server is shutting down")
	if err := e.Server.Shutdown(); err != nil {
		logger.Error("[xhttp] error while shutting down", "error", err)
	}
}
