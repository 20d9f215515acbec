package web

import (
	"net/http"
	"os"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/mogaika/vrm_spring_bones/preview"
	"github.com/mogaika/vrm_spring_bones/status"
)

var ServerHost *preview.Host

func NewRouter(host *preview.Host, hub *status.Hub) *mux.Router {
	ServerHost = host

	r := mux.NewRouter()
	r.HandleFunc("/json/rig", HandlerAjaxRig)
	r.HandleFunc("/json/report", HandlerAjaxReport)
	r.HandleFunc("/json/frame", HandlerAjaxFrame)
	r.HandleFunc("/json/config", HandlerAjaxConfig)
	r.HandleFunc("/action/reset", HandlerActionReset).Methods("POST")
	r.HandleFunc("/action/enable/{on}", HandlerActionEnable).Methods("POST")
	r.HandleFunc("/dump/state", HandlerDumpState)
	r.HandleFunc("/dump/rig", HandlerDumpRig)
	r.HandleFunc("/dump/pose.{format:glb|gltf}", HandlerDumpPose)
	r.Handle("/ws", hub)
	return r
}

func StartServer(addr string, host *preview.Host, hub *status.Hub) error {
	r := NewRouter(host, hub)

	h := handlers.RecoveryHandler(handlers.PrintRecoveryStack(true))(r)
	h = handlers.LoggingHandler(os.Stdout, h)

	log.Printf("[web] Starting server %v", addr)

	return http.ListenAndServe(addr, h)
}
