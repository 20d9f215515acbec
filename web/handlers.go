package web

import (
	"bytes"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/mogaika/vrm_spring_bones/webutils"
)

func HandlerAjaxRig(w http.ResponseWriter, r *http.Request) {
	webutils.WriteJson(w, ServerHost.Rig())
}

func HandlerAjaxReport(w http.ResponseWriter, r *http.Request) {
	report := ServerHost.Report()
	if r.URL.Query().Get("format") == "text" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		webutils.WriteResult(w, []byte(report.String()))
		return
	}
	webutils.WriteJson(w, report)
}

func HandlerAjaxFrame(w http.ResponseWriter, r *http.Request) {
	if f := ServerHost.Frame(); f == nil {
		webutils.WriteErrorCode(w, errors.New("No frame simulated yet"), http.StatusServiceUnavailable)
	} else {
		webutils.WriteJson(w, f)
	}
}

func HandlerAjaxConfig(w http.ResponseWriter, r *http.Request) {
	webutils.WriteJson(w, ServerHost.Config())
}

func HandlerActionReset(w http.ResponseWriter, r *http.Request) {
	if err := ServerHost.Reset(); err != nil {
		webutils.WriteError(w, err)
	} else {
		webutils.WriteJson(w, "ok")
	}
}

func HandlerActionEnable(w http.ResponseWriter, r *http.Request) {
	param := mux.Vars(r)["on"]
	on, err := strconv.ParseBool(param)
	if err != nil {
		webutils.WriteErrorCode(w, errors.Errorf("param '%s' is not bool", param), http.StatusBadRequest)
		return
	}
	if err := ServerHost.SetEnabled(on); err != nil {
		webutils.WriteError(w, err)
	} else {
		webutils.WriteJson(w, on)
	}
}

func HandlerDumpState(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := ServerHost.DumpState(&buf); err != nil {
		webutils.WriteError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	webutils.WriteResult(w, buf.Bytes())
}

func HandlerDumpRig(w http.ResponseWriter, r *http.Request) {
	webutils.WriteJsonFile(w, ServerHost.Rig(), "rig")
}

func HandlerDumpPose(w http.ResponseWriter, r *http.Request) {
	format := mux.Vars(r)["format"]
	binary := format == "glb"

	var buf bytes.Buffer
	if err := ServerHost.ExportPose(&buf, binary); err != nil {
		webutils.WriteError(w, errors.Wrapf(err, "Failed to export pose"))
		return
	}
	contentType := "model/gltf+json"
	if binary {
		contentType = "model/gltf-binary"
	}
	webutils.WriteFile(w, &buf, "pose."+format, contentType)
}
