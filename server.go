package grapht

import (
	"encoding/json"
	"net/http"
)

// Handler serves the engine over HTTP: POST executes GraphQL requests,
// GET serves a GraphiQL page. The optional hook functions derive the
// per-request metadata and partition key from the incoming request, for
// hosts that carry identity in headers or tokens.
type Handler struct {
	engine *Engine

	// RequestContextFn, when set, derives the opaque request context
	// handed to resolvers and event handlers.
	RequestContextFn func(r *http.Request) any

	// PartitionKeyFn, when set, derives the partition key. The default
	// reads the X-Partition-Key header and passes nil when absent.
	PartitionKeyFn func(r *http.Request) any
}

// NewHandler wraps an engine in an http.Handler.
func NewHandler(engine *Engine) *Handler {
	return &Handler{engine: engine}
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		h.serveGraphiQL(w, r)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Query         string         `json:"query"`
		Variables     map[string]any `json:"variables"`
		OperationName string         `json:"operationName"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var requestCtx any
	if h.RequestContextFn != nil {
		requestCtx = h.RequestContextFn(r)
	}
	var partitionKey any
	if h.PartitionKeyFn != nil {
		partitionKey = h.PartitionKeyFn(r)
	} else if pk := r.Header.Get("X-Partition-Key"); pk != "" {
		partitionKey = pk
	}

	result := h.engine.Execute(r.Context(), Request{
		Query:          req.Query,
		Variables:      req.Variables,
		OperationName:  req.OperationName,
		RequestContext: requestCtx,
		PartitionKey:   partitionKey,
	})

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(result); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// serveGraphiQL serves the GraphiQL interface.
func (h *Handler) serveGraphiQL(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	w.Write([]byte(graphiQLHTML))
}

const graphiQLHTML = `
<!DOCTYPE html>
<html>
<head>
  <title>GraphiQL</title>
  <style>
    body {
      height: 100vh;
      margin: 0;
      overflow: hidden;
    }
    #graphiql {
      height: 100vh;
    }
  </style>
  <link href="https://unpkg.com/graphiql/graphiql.min.css" rel="stylesheet" />
</head>
<body>
  <div id="graphiql">Loading...</div>
  <script
    crossorigin
    src="https://unpkg.com/react/umd/react.production.min.js"
  ></script>
  <script
    crossorigin
    src="https://unpkg.com/react-dom/umd/react-dom.production.min.js"
  ></script>
  <script
    crossorigin
    src="https://unpkg.com/graphiql/graphiql.min.js"
  ></script>
  <script>
    const fetcher = GraphiQL.createFetcher({ url: window.location.pathname });
    ReactDOM.render(
      React.createElement(GraphiQL, { fetcher: fetcher }),
      document.getElementById('graphiql'),
    );
  </script>
</body>
</html>
`
