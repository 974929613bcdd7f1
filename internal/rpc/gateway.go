package rpc

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	gwruntime "github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"go.klb.dev/stash/internal/entry"
)

// NewGateway serves the HTTP/JSON view of srv:
//
//	GET    /v1/entries?limit=&before=
//	GET    /v1/search?q=&limit=
//	GET    /v1/entries/{id}/text
//	DELETE /v1/entries/{id}
//	GET    /v1/status
//
// Every response is an {ok, error} envelope. The Authorization header is
// passed through to the service's token check.
func NewGateway(srv HistoryServer) (*gwruntime.ServeMux, error) {
	mux := gwruntime.NewServeMux()
	routes := []struct {
		method, path string
		h            gwruntime.HandlerFunc
	}{
		{"GET", "/v1/entries", func(w http.ResponseWriter, r *http.Request, _ map[string]string) {
			req := &RecentRequest{Limit: intParam(r, "limit"), Before: int64Param(r, "before")}
			resp, err := srv.Recent(incoming(r), req)
			writeEnvelope(w, entriesOf(resp), err)
		}},
		{"GET", "/v1/search", func(w http.ResponseWriter, r *http.Request, _ map[string]string) {
			req := &SearchRequest{Query: r.URL.Query().Get("q"), Limit: intParam(r, "limit")}
			resp, err := srv.Search(incoming(r), req)
			writeEnvelope(w, entriesOf(resp), err)
		}},
		{"GET", "/v1/entries/{id}/text", func(w http.ResponseWriter, r *http.Request, p map[string]string) {
			id, err := strconv.ParseInt(p["id"], 10, 64)
			if err != nil {
				writeEnvelope[string](w, "", status.Error(codes.InvalidArgument, "bad id"))
				return
			}
			resp, err := srv.Text(incoming(r), &IDRequest{ID: id})
			var text string
			if resp != nil {
				text = resp.Text
			}
			writeEnvelope(w, text, err)
		}},
		{"DELETE", "/v1/entries/{id}", func(w http.ResponseWriter, r *http.Request, p map[string]string) {
			id, err := strconv.ParseInt(p["id"], 10, 64)
			if err != nil {
				writeEnvelope(w, false, status.Error(codes.InvalidArgument, "bad id"))
				return
			}
			_, err = srv.Delete(incoming(r), &IDRequest{ID: id})
			writeEnvelope(w, err == nil, err)
		}},
		{"GET", "/v1/status", func(w http.ResponseWriter, r *http.Request, _ map[string]string) {
			resp, err := srv.Status(incoming(r), &Empty{})
			writeEnvelope(w, resp, err)
		}},
	}
	for _, rt := range routes {
		if err := mux.HandlePath(rt.method, rt.path, rt.h); err != nil {
			return nil, err
		}
	}
	return mux, nil
}

// incoming carries the HTTP Authorization header into gRPC metadata.
func incoming(r *http.Request) context.Context {
	md := metadata.MD{}
	if auth := r.Header.Get("Authorization"); auth != "" {
		md.Set("authorization", auth)
	}
	if src := r.Header.Get(SourceHeader); src != "" {
		md.Set(SourceHeader, src)
	}
	return metadata.NewIncomingContext(r.Context(), md)
}

func entriesOf(resp *EntriesResponse) []entry.Entry {
	if resp == nil {
		return nil
	}
	return resp.Entries
}

func writeEnvelope[T any](w http.ResponseWriter, v T, err error) {
	w.Header().Set("Content-Type", "application/json")
	var body entry.Response[T]
	if err != nil {
		st, _ := status.FromError(err)
		w.WriteHeader(gwruntime.HTTPStatusFromCode(st.Code()))
		body = entry.Response[T]{Error: st.Message()}
	} else {
		body = entry.OKResponse(v)
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Debug("gateway write failed", "err", err)
	}
}

func intParam(r *http.Request, name string) int {
	n, _ := strconv.Atoi(r.URL.Query().Get(name))
	return n
}

func int64Param(r *http.Request, name string) int64 {
	n, _ := strconv.ParseInt(r.URL.Query().Get(name), 10, 64)
	return n
}
