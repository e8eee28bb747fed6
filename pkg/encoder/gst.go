package encoder

/*
#cgo pkg-config: gstreamer-1.0

#include <stdlib.h>
#include <glib.h>
#include <gst/gst.h>

extern gboolean goEncoderBusFunc(GstBus *bus, GstMessage *msg, gpointer data);

static gboolean cgoEncoderBusFunc(GstBus *bus, GstMessage *msg, gpointer data) {
	return goEncoderBusFunc(bus, msg, data);
}
*/
import "C"

import (
	"unsafe"

	"github.com/mattn/go-pointer"
	"go.uber.org/zap"
)

// GstEncoder controls the bitrate property of an already-running
// GStreamer pipeline's video encoder element. It looks for "venc_bps"
// first, falling back to "venc_kbps" (dividing every SetBitrate argument
// by 1000 before applying it), matching the original encoder_control.c.
type GstEncoder struct {
	element  *C.GstElement
	divisor  int64
	current  int64
	watchSrc *C.GSource
}

var _ Encoder = (*GstEncoder)(nil)

// NewGstEncoder looks up the bitrate-controllable element in pipeline
// (an unsafe.Pointer to a *C.GstElement, as returned by
// pipelinefile.Pipeline.Handle) and attaches a bus watch that logs
// encoder error/warning/QoS messages via zap — the one place in this
// codebase zap is used instead of zerolog, preserved from the original
// cgo encoder wrapper's own logging choice.
func NewGstEncoder(pipelineHandle unsafe.Pointer) *GstEncoder {
	pipeline := (*C.GstElement)(pipelineHandle)

	cName := C.CString("venc_bps")
	defer C.free(unsafe.Pointer(cName))
	element := C.gst_bin_get_by_name((*C.GstBin)(unsafe.Pointer(pipeline)), (*C.gchar)(cName))

	divisor := int64(1)
	if element == nil {
		cName2 := C.CString("venc_kbps")
		defer C.free(unsafe.Pointer(cName2))
		element = C.gst_bin_get_by_name((*C.GstBin)(unsafe.Pointer(pipeline)), (*C.gchar)(cName2))
		divisor = 1000
	}

	enc := &GstEncoder{element: element, divisor: divisor, current: -1}
	if element == nil {
		return enc
	}

	bus := C.gst_pipeline_get_bus((*C.GstPipeline)(unsafe.Pointer(pipeline)))
	defer C.gst_object_unref(C.gpointer(unsafe.Pointer(bus)))

	watch := C.gst_bus_create_watch(bus)
	C.g_source_set_callback(watch, C.GSourceFunc(C.cgoEncoderBusFunc), C.gpointer(pointer.Save(enc)), nil)
	C.g_source_attach(watch, nil)
	enc.watchSrc = watch

	return enc
}

// Available reports whether a "venc_bps" or "venc_kbps" element was found
// in the pipeline, mirroring the original's GST_IS_ELEMENT check.
func (e *GstEncoder) Available() bool { return e.element != nil }

// SetBitrate applies bps, scaled by the element's divisor, only if it
// differs from the value last applied — the same edge-triggered guard the
// original keeps in a static prev_set_bitrate.
func (e *GstEncoder) SetBitrate(bps int64) {
	if e.element == nil || bps == e.current {
		return
	}
	e.current = bps

	scaled := bps / e.divisor
	cProp := C.CString("bitrate")
	defer C.free(unsafe.Pointer(cProp))
	C.g_object_set(C.gpointer(unsafe.Pointer(e.element)), cProp, C.gint(scaled), nil)
}

func (e *GstEncoder) CurrentBitrate() int64 {
	if e.current < 0 {
		return 0
	}
	return e.current
}

// Close detaches the bus watch. Safe to call on an encoder with no
// element found.
func (e *GstEncoder) Close() {
	if e.watchSrc != nil {
		C.g_source_destroy(e.watchSrc)
		C.g_source_unref(e.watchSrc)
		e.watchSrc = nil
	}
	if e.element != nil {
		C.gst_object_unref(C.gpointer(unsafe.Pointer(e.element)))
	}
}

//export goEncoderBusFunc
func goEncoderBusFunc(bus *C.GstBus, msg *C.GstMessage, ptr C.gpointer) C.gboolean {
	enc := pointer.Restore(unsafe.Pointer(ptr)).(*GstEncoder)
	_ = enc

	switch msg._type {
	case C.GST_MESSAGE_ERROR:
		var gerr *C.GError
		C.gst_message_parse_error(msg, (**C.GError)(unsafe.Pointer(&gerr)), nil)
		defer C.g_error_free(gerr)
		zap.L().Error("encoder element error", zap.String("message", C.GoString(gerr.message)))
	case C.GST_MESSAGE_WARNING:
		var gerr *C.GError
		C.gst_message_parse_warning(msg, (**C.GError)(unsafe.Pointer(&gerr)), nil)
		defer C.g_error_free(gerr)
		zap.L().Warn("encoder element warning", zap.String("message", C.GoString(gerr.message)))
	case C.GST_MESSAGE_QOS:
		zap.L().Debug("encoder QoS event")
	}
	return C.gboolean(1)
}
