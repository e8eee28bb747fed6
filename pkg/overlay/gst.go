package overlay

/*
#cgo pkg-config: gstreamer-1.0

#include <stdlib.h>
#include <glib.h>
#include <gst/gst.h>
*/
import "C"

import (
	"unsafe"

	"github.com/ceralive/ceracoder/pkg/balancer"
)

// GstOverlay drives a GStreamer textoverlay-style element named "overlay"
// found in the running pipeline, setting its "text" property each tick.
// Grounded on the original src/gst/overlay_ui.c.
type GstOverlay struct {
	element *C.GstElement
}

var _ Overlay = (*GstOverlay)(nil)

// NewGstOverlay looks up the "overlay" element in pipeline (an
// unsafe.Pointer to a *C.GstElement, as returned by
// pipelinefile.Pipeline.Handle).
func NewGstOverlay(pipelineHandle unsafe.Pointer) *GstOverlay {
	pipeline := (*C.GstElement)(pipelineHandle)

	cName := C.CString("overlay")
	defer C.free(unsafe.Pointer(cName))
	element := C.gst_bin_get_by_name((*C.GstBin)(unsafe.Pointer(pipeline)), (*C.gchar)(cName))

	return &GstOverlay{element: element}
}

// Available reports whether an "overlay" element was found, mirroring the
// original's GST_IS_ELEMENT check.
func (o *GstOverlay) Available() bool { return o.element != nil }

// Update formats out via Format and pushes it into the element's "text"
// property.
func (o *GstOverlay) Update(out balancer.Output) {
	if o.element == nil {
		return
	}
	text := Format(out)
	cText := C.CString(text)
	defer C.free(unsafe.Pointer(cText))

	cProp := C.CString("text")
	defer C.free(unsafe.Pointer(cProp))
	C.g_object_set(C.gpointer(unsafe.Pointer(o.element)), cProp, cText, nil)
}

// Close releases the element reference.
func (o *GstOverlay) Close() {
	if o.element != nil {
		C.gst_object_unref(C.gpointer(unsafe.Pointer(o.element)))
		o.element = nil
	}
}
