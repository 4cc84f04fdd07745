package transport

import (
	_ "embed"
	"net/http"
)

//go:embed control.html
var controlPage []byte

func handleControlPage(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(controlPage)
}
