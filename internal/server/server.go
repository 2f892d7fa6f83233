package server

import (
	"net"
	"time"

	"go.uber.org/zap"

	"github.com/xurwy/tgserver/internal/logutil"
	"github.com/xurwy/tgserver/internal/transport"
)

const saltRotationInterval = 30 * time.Minute

// Server accepts client transports and runs one Connection per accepted
// conn. RegisterDefaultFactories must have been called (and the API
// frozen) before Serve.
type Server struct {
	api    *ServerApi
	logger *zap.Logger

	done chan struct{}
}

func NewServer(api *ServerApi) *Server {
	return &Server{
		api:    api,
		logger: logutil.L("remote.connection"),
		done:   make(chan struct{}),
	}
}

func (s *Server) Api() *ServerApi {
	return s.api
}

// Serve accepts connections until the listener closes.
func (s *Server) Serve(lis net.Listener) error {
	go s.saltLoop()
	s.logger.Info("listening", zap.String("addr", lis.Addr().String()))
	for {
		conn, err := lis.Accept()
		if err != nil {
			select {
			case <-s.done:
				return nil
			default:
				return err
			}
		}
		go s.handle(conn)
	}
}

func (s *Server) handle(conn net.Conn) {
	t, err := transport.Accept(conn)
	if err != nil {
		s.logger.Info("transport negotiation failed",
			zap.String("remote", conn.RemoteAddr().String()), zap.Error(err))
		_ = conn.Close()
		return
	}
	NewConnection(s.api, t).Run()
}

func (s *Server) Close() {
	close(s.done)
}

func (s *Server) saltLoop() {
	ticker := time.NewTicker(saltRotationInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.api.RotateServerSalt()
		}
	}
}

// RegisterDefaultFactories wires every built-in operation namespace
// into the API's routing table and freezes it.
func RegisterDefaultFactories(api *ServerApi) {
	api.RegisterOperationFactory(&HelpOperationFactory{})
	api.RegisterOperationFactory(&UsersOperationFactory{})
	api.RegisterOperationFactory(&AuthOperationFactory{})
	api.RegisterOperationFactory(&MessagesOperationFactory{})
	api.RegisterOperationFactory(&ContactsOperationFactory{})
	api.Freeze()
}
