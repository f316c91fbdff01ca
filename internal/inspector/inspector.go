// =============================================================================
// 文件: internal/inspector/inspector.go
// 描述: 实时状态检视器 - 通过 WebSocket 周期性推送 Controller 快照
// =============================================================================
package inspector

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// SnapshotFunc 返回被检视对象当前状态的一个可序列化快照。
type SnapshotFunc func() any

// Server 把 SnapshotFunc 的返回值以固定间隔推送给所有已连接的 WebSocket 客户端。
type Server struct {
	addr     string
	path     string
	interval time.Duration
	snapshot SnapshotFunc

	httpServer *http.Server
	upgrader   websocket.Upgrader

	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}

	logger Logger
}

// Logger 是诊断输出的最小接口；标准库 *log.Logger 满足它。
type Logger interface {
	Printf(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Printf(string, ...any) {}

// NewServer 创建一个尚未启动的检视器服务器。
func NewServer(addr, path string, interval time.Duration, snapshot SnapshotFunc, logger Logger) *Server {
	if logger == nil {
		logger = nopLogger{}
	}
	if interval <= 0 {
		interval = 200 * time.Millisecond
	}
	return &Server{
		addr:     addr,
		path:     path,
		interval: interval,
		snapshot: snapshot,
		clients:  make(map[*websocket.Conn]struct{}),
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 4 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Start 启动 HTTP 服务器和后台推送循环；ctx 取消时推送循环停止并关闭所有客户端，
// HTTP 服务器继续运行，直到调用 Stop。
func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc(s.path, s.handleConnect)

	s.httpServer = &http.Server{Addr: s.addr, Handler: mux}

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Printf("inspector: http server error: %v", err)
		}
	}()

	go s.pushLoop(ctx)

	s.logger.Printf("inspector: listening on %s%s", s.addr, s.path)
	return nil
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Printf("inspector: upgrade failed: %v", err)
		return
	}

	s.mu.Lock()
	s.clients[conn] = struct{}{}
	s.mu.Unlock()

	// 推送一次初始快照，之后完全由 pushLoop 驱动；读取循环只用来检测断连。
	s.writeSnapshot(conn)

	go func() {
		defer s.disconnect(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (s *Server) disconnect(conn *websocket.Conn) {
	s.mu.Lock()
	delete(s.clients, conn)
	s.mu.Unlock()
	conn.Close()
}

func (s *Server) pushLoop(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.closeAll()
			return
		case <-ticker.C:
			s.broadcast()
		}
	}
}

func (s *Server) broadcast() {
	s.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(s.clients))
	for c := range s.clients {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, conn := range conns {
		s.writeSnapshot(conn)
	}
}

func (s *Server) writeSnapshot(conn *websocket.Conn) {
	data, err := json.Marshal(s.snapshot())
	if err != nil {
		s.logger.Printf("inspector: marshal snapshot: %v", err)
		return
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		s.disconnect(conn)
	}
}

func (s *Server) closeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.clients {
		conn.Close()
	}
	s.clients = make(map[*websocket.Conn]struct{})
}

// Stop 优雅关闭 HTTP 服务器。
func (s *Server) Stop() {
	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.httpServer.Shutdown(ctx)
	}
}

// ClientCount 返回当前已连接的客户端数，主要供测试使用。
func (s *Server) ClientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}
