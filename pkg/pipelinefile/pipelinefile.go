// Package pipelinefile loads a GStreamer pipeline description from disk
// and instantiates it, handing back an opaque handle the encoder and
// overlay adapters use to look up the elements they control. Grounded on
// the original src/io/pipeline_loader.c; pipeline construction itself
// (which elements a description contains) is out of scope here — this
// package only loads the description and starts the pipeline.
package pipelinefile

/*
#cgo pkg-config: gstreamer-1.0

#include <stdlib.h>
#include <gst/gst.h>
*/
import "C"

import (
	"errors"
	"fmt"
	"os"
	"unsafe"
)

func init() {
	C.gst_init(nil, nil)
}

// ErrEmpty is returned by Load when the pipeline description file exists
// but is empty — the original rejects a zero-length mmap the same way.
var ErrEmpty = errors.New("pipelinefile: description file is empty")

// Pipeline is a running GStreamer pipeline built from a loaded
// description. Handle is an opaque *C.GstElement, exposed as
// unsafe.Pointer so the encoder/overlay adapter packages (themselves
// separate cgo translation units) can look up named elements without
// this package exporting any C types across the package boundary.
type Pipeline struct {
	handle unsafe.Pointer
}

// Handle returns the pipeline's underlying GstElement* as an
// unsafe.Pointer, for use by pkg/encoder and pkg/overlay's GStreamer
// adapters.
func (p *Pipeline) Handle() unsafe.Pointer { return p.handle }

// Load reads the pipeline description file and parses it into a running
// GStreamer pipeline. The description is read fully into memory rather
// than mmap'd: the original mmaps the file read-only for the lifetime of
// the process, but gst_parse_launch only needs the bytes once, at parse
// time, so a one-shot ReadFile avoids holding a live mapping for no
// benefit.
func Load(path string) (*Pipeline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("pipelinefile: %w", err)
	}
	if len(data) == 0 {
		return nil, ErrEmpty
	}

	cLaunch := C.CString(string(data))
	defer C.free(unsafe.Pointer(cLaunch))

	var gerr *C.GError
	element := C.gst_parse_launch(cLaunch, &gerr)
	if element == nil {
		defer C.g_error_free(gerr)
		return nil, fmt.Errorf("pipelinefile: gst_parse_launch: %s", C.GoString(gerr.message))
	}

	if C.gst_element_set_state(element, C.GST_STATE_PLAYING) == C.GST_STATE_CHANGE_FAILURE {
		C.gst_object_unref(C.gpointer(unsafe.Pointer(element)))
		return nil, errors.New("pipelinefile: failed to set pipeline to playing")
	}

	return &Pipeline{handle: unsafe.Pointer(element)}, nil
}

// Position queries the pipeline's current playback position in
// nanoseconds, for the control loop's stall detector. ok is false if the
// query failed (e.g. the pipeline has no queryable position yet).
func (p *Pipeline) Position() (int64, bool) {
	element := (*C.GstElement)(p.handle)
	var pos C.gint64
	if C.gst_element_query_position(element, C.GST_FORMAT_TIME, &pos) == 0 {
		return 0, false
	}
	return int64(pos), true
}

// Close tears the pipeline down, mirroring the original's
// gst_element_set_state(..., GST_STATE_NULL) followed by munmap of the
// description (handled above by not mmap'ing at all).
func (p *Pipeline) Close() error {
	element := (*C.GstElement)(p.handle)
	if C.gst_element_set_state(element, C.GST_STATE_NULL) == C.GST_STATE_CHANGE_FAILURE {
		return errors.New("pipelinefile: failed to set pipeline to null")
	}
	C.gst_object_unref(C.gpointer(p.handle))
	return nil
}
