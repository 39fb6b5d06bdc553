package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/chazu/ngxgen/manifest"
	"github.com/chazu/ngxgen/symbols"
)

// Procedures served by Service. Messages are google.protobuf.Struct, so any
// Connect, gRPC or gRPC-Web client can call them without generated stubs.
const (
	CheckProcedure  = "/ngxgen.v1.GenerateService/Check"
	LookupProcedure = "/ngxgen.v1.SymbolService/Lookup"
)

// Service answers generation checks and symbol lookups over HTTP, for build
// farms and editors that do not speak LSP.
type Service struct {
	analyzer
	store *symbols.Store
	mux   *http.ServeMux
}

// NewService creates the service. store may be nil, which disables Lookup.
func NewService(m *manifest.Manifest, store *symbols.Store) (*Service, error) {
	a, err := newAnalyzer(m)
	if err != nil {
		return nil, err
	}
	s := &Service{analyzer: a, store: store, mux: http.NewServeMux()}

	s.mux.Handle(CheckProcedure, connect.NewUnaryHandler(CheckProcedure, s.Check))
	s.mux.Handle(LookupProcedure, connect.NewUnaryHandler(LookupProcedure, s.Lookup))
	return s, nil
}

// Handler returns the HTTP handler serving every procedure.
func (s *Service) Handler() http.Handler {
	return s.mux
}

// ListenAndServe serves HTTP/1.1 and cleartext HTTP/2 on addr.
func (s *Service) ListenAndServe(addr string) error {
	protocols := new(http.Protocols)
	protocols.SetHTTP1(true)
	protocols.SetUnencryptedHTTP2(true)

	srv := &http.Server{Addr: addr, Handler: s.mux, Protocols: protocols}
	log.Infof("ngxgen service listening on %s", addr)
	log.Infof("  check:  http://%s%s", addr, CheckProcedure)
	log.Infof("  lookup: http://%s%s", addr, LookupProcedure)
	return srv.ListenAndServe()
}

// Check runs the generator over one source file.
//
// Request fields: source (required), filename.
// Response fields: ok, diagnostics, handlers, callbacks, symbols.
func (s *Service) Check(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
) (*connect.Response[structpb.Struct], error) {
	fields := req.Msg.GetFields()
	source := fields["source"].GetStringValue()
	if source == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("source is required"))
	}
	filename := fields["filename"].GetStringValue()
	if filename == "" {
		filename = "input.go"
	}

	doc := s.analyze(filename, source)

	diags := make([]any, len(doc.diags))
	for i, d := range doc.diags {
		entry := map[string]any{
			"line":    int64(d.Range.Start.Line) + 1,
			"column":  int64(d.Range.Start.Character) + 1,
			"message": d.Message,
		}
		if d.Code != nil {
			entry["kind"] = fmt.Sprint(d.Code.Value)
		}
		diags[i] = entry
	}

	resp := map[string]any{
		"ok":          len(doc.diags) == 0,
		"diagnostics": diags,
	}
	if doc.out != nil {
		resp["handlers"] = string(doc.out.Handlers)
		resp["callbacks"] = string(doc.out.Callbacks)
		var names []any
		for _, sym := range doc.out.Symbols() {
			names = append(names, sym.Name)
		}
		resp["symbols"] = names
	}

	msg, err := structpb.NewStruct(resp)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(msg), nil
}

// Lookup returns one symbol of the configured symbol database.
//
// Request fields: name (required).
func (s *Service) Lookup(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
) (*connect.Response[structpb.Struct], error) {
	if s.store == nil {
		return nil, connect.NewError(connect.CodeUnimplemented, fmt.Errorf("no symbol database configured"))
	}
	name := req.Msg.GetFields()["name"].GetStringValue()
	if name == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("name is required"))
	}

	sym, err := s.store.Lookup(name)
	if errors.Is(err, symbols.ErrSymbolNotFound) {
		return nil, connect.NewError(connect.CodeNotFound, fmt.Errorf("symbol %q not found", name))
	}
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	params := make([]any, len(sym.Params))
	for i, p := range sym.Params {
		params[i] = map[string]any{"name": p.Name, "go_type": p.GoType, "c_type": p.CType}
	}
	msg, err := structpb.NewStruct(map[string]any{
		"name":     sym.Name,
		"kind":     sym.Kind,
		"decl":     sym.Decl,
		"package":  sym.Package,
		"params":   params,
		"result":   sym.Result,
		"position": sym.Position,
	})
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(msg), nil
}
