package clientv2

import (
	"crypto/tls"
	"net/http"
	"net/http/httptrace"
	"net/http/httputil"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/daytonaio/go-sdk/internal/env"
)

var (
	debugLock           sync.RWMutex
	debugLogger         logrus.FieldLogger = logrus.StandardLogger()
	printRequestTrace                      = false
	printRequest        *bool              = nil
	printRequestDetail  *bool              = nil
	printResponse       *bool              = nil
	printResponseDetail *bool              = nil
)

// SetLogger 设置调试信息的输出目标，默认为 logrus.StandardLogger()
func SetLogger(logger logrus.FieldLogger) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	debugLock.Lock()
	debugLogger = logger
	debugLock.Unlock()
}

func getLogger() logrus.FieldLogger {
	debugLock.RLock()
	defer debugLock.RUnlock()
	return debugLogger
}

func PrintRequestTrace(isPrint bool) {
	debugLock.Lock()
	printRequestTrace = isPrint
	debugLock.Unlock()
}

func IsPrintRequestTrace() bool {
	debugLock.RLock()
	defer debugLock.RUnlock()
	return printRequestTrace
}

func PrintRequest(isPrint bool) {
	debugLock.Lock()
	printRequest = &isPrint
	debugLock.Unlock()
}

// IsPrintRequest 未显式设置时由 DAYTONA_DEBUG 决定
func IsPrintRequest() bool {
	return readFlag(&printRequest)
}

func PrintRequestDetail(isPrint bool) {
	debugLock.Lock()
	printRequestDetail = &isPrint
	debugLock.Unlock()
}

func IsPrintRequestDetail() bool {
	return readFlag(&printRequestDetail)
}

func PrintResponse(isPrint bool) {
	debugLock.Lock()
	printResponse = &isPrint
	debugLock.Unlock()
}

func IsPrintResponse() bool {
	return readFlag(&printResponse)
}

func PrintResponseDetail(isPrint bool) {
	debugLock.Lock()
	printResponseDetail = &isPrint
	debugLock.Unlock()
}

func IsPrintResponseDetail() bool {
	return readFlag(&printResponseDetail)
}

func readFlag(flag **bool) bool {
	debugLock.RLock()
	defer debugLock.RUnlock()
	if *flag != nil {
		return **flag
	}
	enabled, _ := env.DebugFromEnvironment()
	return enabled
}

type debugInterceptor struct {
}

func newDebugInterceptor() Interceptor {
	return &debugInterceptor{}
}

func (r *debugInterceptor) Priority() InterceptorPriority {
	return InterceptorPriorityDebug
}

func (r *debugInterceptor) Intercept(req *http.Request, handler Handler) (*http.Response, error) {
	if req == nil {
		return handler(req)
	}

	label := r.requestLabel(req)

	if e := r.printRequest(label, req); e != nil {
		return nil, e
	}

	req = r.printRequestTrace(label, req)

	resp, err := handler(req)
	if err != nil {
		getLogger().WithField("request", label).WithError(err).Debug("request failed")
	}

	if e := r.printResponse(label, resp); e != nil {
		return nil, e
	}

	return resp, err
}

func (r *debugInterceptor) requestLabel(req *http.Request) string {
	if req.URL == nil {
		return req.Method
	}
	return req.Method + " " + req.URL.String()
}

func (r *debugInterceptor) printRequest(label string, req *http.Request) error {
	printReq := IsPrintRequest()
	printReqDetail := IsPrintRequestDetail()
	if !printReq && !printReqDetail {
		return nil
	}

	dump, err := httputil.DumpRequestOut(req, printReqDetail)
	if err != nil {
		return err
	}
	getLogger().WithField("request", label).Debug(string(dump))
	return nil
}

func (r *debugInterceptor) printRequestTrace(label string, req *http.Request) *http.Request {
	if !IsPrintRequestTrace() {
		return req
	}

	log := getLogger().WithField("request", label)
	trace := &httptrace.ClientTrace{
		GetConn: func(hostPort string) {
			log.Debugf("GetConn, %s", hostPort)
		},
		GotConn: func(connInfo httptrace.GotConnInfo) {
			remoteAddr := connInfo.Conn.RemoteAddr()
			log.Debugf("GotConn, Network:%s RemoteAddr:%s Reused:%t", remoteAddr.Network(), remoteAddr.String(), connInfo.Reused)
		},
		GotFirstResponseByte: func() {
			log.Debug("GotFirstResponseByte")
		},
		DNSDone: func(info httptrace.DNSDoneInfo) {
			log.Debugf("DNSDone, addr:%+v err:%v", info.Addrs, info.Err)
		},
		ConnectDone: func(network, addr string, err error) {
			log.Debugf("ConnectDone, network:%s ip:%s err:%v", network, addr, err)
		},
		TLSHandshakeDone: func(state tls.ConnectionState, err error) {
			log.Debugf("TLSHandshakeDone, version:%x err:%v", state.Version, err)
		},
		WroteRequest: func(info httptrace.WroteRequestInfo) {
			log.Debugf("WroteRequest, err:%v", info.Err)
		},
	}
	return req.WithContext(httptrace.WithClientTrace(req.Context(), trace))
}

func (r *debugInterceptor) printResponse(label string, resp *http.Response) error {
	if resp == nil {
		return nil
	}

	printResp := IsPrintResponse()
	printRespDetail := IsPrintResponseDetail()
	if !printResp && !printRespDetail {
		return nil
	}

	// 流式响应长度未知，读取 body 会阻塞到流结束
	dump, err := httputil.DumpResponse(resp, printRespDetail && resp.ContentLength >= 0)
	if err != nil {
		return err
	}
	getLogger().WithFields(logrus.Fields{
		"request": label,
		"status":  resp.StatusCode,
	}).Debug(string(dump))
	return nil
}
