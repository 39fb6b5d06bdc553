// Package rt is the runtime support imported by code that ngxgen generates.
//
// It defines the host status contract (OK, ERROR and the other sentinels),
// the safe-side wrapper types Option and Ref, the generic conversions between
// raw host pointers and safe references, and Guard, which keeps panics from
// unwinding into host frames.
//
// A generated handler looks like:
//
//	//export ngx_http_hello_handler
//	func ngx_http_hello_handler(reqRaw *C.ngx_http_request_t) (rc int) {
//		defer rt.Guard("ngx_http_hello_handler", &rc, rt.ERROR)
//		req := rt.Handle[RequestRef](unsafe.Pointer(reqRaw))
//		err := helloHandler(req)
//		if rt.IsErr(err) {
//			return rt.ErrStatus(err)
//		}
//		return rt.OK
//	}
//
// Pointers handed to these helpers belong to the host and are valid for one
// call only. Nothing here allocates or frees host memory.
package rt
