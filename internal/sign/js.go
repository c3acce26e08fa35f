package sign

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/dop251/goja"
)

// Names of the entry points the extracted SDK must export.
const (
	jsSignFunc  = "getMSSDKSignature"
	jsBogusFunc = "getABogus"
)

// DefaultSignAttempts caps the retry loop for signatures containing
// disallowed characters.
const DefaultSignAttempts = 5

// JSSigner implements Signer by running the extracted JS SDK in an embedded
// goja runtime. The runtime is not goroutine-safe, so calls are serialized.
type JSSigner struct {
	mu      sync.Mutex
	vm      *goja.Runtime
	signFn  goja.Callable
	bogusFn goja.Callable

	userAgent   string
	maxAttempts int
	logger      *slog.Logger
}

// JSSignerOption configures a JSSigner.
type JSSignerOption func(*JSSigner)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) JSSignerOption {
	return func(s *JSSigner) {
		s.logger = logger
	}
}

// WithMaxAttempts sets the signature retry cap.
func WithMaxAttempts(n int) JSSignerOption {
	return func(s *JSSigner) {
		s.maxAttempts = n
	}
}

// NewJSSigner loads the SDK script from disk and prepares the runtime. A
// missing or broken script is a startup configuration error.
func NewJSSigner(sdkPath, userAgent string, opts ...JSSignerOption) (*JSSigner, error) {
	src, err := os.ReadFile(sdkPath)
	if err != nil {
		return nil, fmt.Errorf("read signing sdk: %w", err)
	}

	vm := goja.New()
	if _, err := vm.RunScript(sdkPath, string(src)); err != nil {
		return nil, fmt.Errorf("evaluate signing sdk: %w", err)
	}

	signFn, ok := goja.AssertFunction(vm.Get(jsSignFunc))
	if !ok {
		return nil, fmt.Errorf("signing sdk does not export %s", jsSignFunc)
	}
	bogusFn, ok := goja.AssertFunction(vm.Get(jsBogusFunc))
	if !ok {
		return nil, fmt.Errorf("signing sdk does not export %s", jsBogusFunc)
	}

	s := &JSSigner{
		vm:          vm,
		signFn:      signFn,
		bogusFn:     bogusFn,
		userAgent:   userAgent,
		maxAttempts: DefaultSignAttempts,
		logger:      slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Sign generates the websocket connection signature for a room. The SDK
// occasionally emits signatures containing '-' or '=', which the endpoint
// rejects; those are retried up to the attempt cap.
func (s *JSSigner) Sign(roomID, uniqueID string) (string, error) {
	stub := MsStub(roomID, uniqueID)

	s.mu.Lock()
	defer s.mu.Unlock()

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		res, err := s.signFn(goja.Undefined(), s.vm.ToValue(stub), s.vm.ToValue(s.userAgent))
		if err != nil {
			return "", fmt.Errorf("run %s: %w", jsSignFunc, err)
		}

		sig := res.String()
		if !strings.ContainsAny(sig, disallowedSigChars) {
			return sig, nil
		}

		s.logger.Debug("signature contained disallowed characters, retrying",
			"room_id", roomID,
			"attempt", attempt,
		)
	}

	return "", fmt.Errorf("%w after %d attempts", ErrSignatureExhausted, s.maxAttempts)
}

// SignURL appends msToken and a_bogus query parameters to an API URL.
func (s *JSSigner) SignURL(rawURL, userAgent string) (string, error) {
	token := MsToken(107)
	sep := "&"
	if !strings.Contains(rawURL, "?") {
		sep = "?"
	}
	withToken := rawURL + sep + "msToken=" + token

	query := withToken
	if i := strings.Index(withToken, "?"); i >= 0 {
		query = withToken[i+1:]
	}

	s.mu.Lock()
	res, err := s.bogusFn(goja.Undefined(), s.vm.ToValue(query), s.vm.ToValue(userAgent))
	s.mu.Unlock()
	if err != nil {
		return "", fmt.Errorf("run %s: %w", jsBogusFunc, err)
	}

	return withToken + "&a_bogus=" + res.String(), nil
}
