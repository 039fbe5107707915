package prompt_resolver

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/vulpemventures/green-cosigner/internal/core/domain"
	"github.com/vulpemventures/green-cosigner/internal/core/ports"
	"golang.org/x/crypto/ssh/terminal"
)

var (
	ErrNoMethodEnabled = fmt.Errorf("no 2FA method enabled")
)

// ResolverArgs holds the streams the resolver talks through. Stdin and
// Stdout are used when not defined.
type ResolverArgs struct {
	In  io.Reader
	Out io.Writer
}

type resolver struct {
	in     io.Reader
	out    io.Writer
	reader *bufio.Reader
}

// NewResolver returns a 2FA resolver that asks the user at the terminal for
// the method to use and the code received. The code is read without echo
// when the input is a terminal.
func NewResolver(args ResolverArgs) ports.TwoFactorResolver {
	in, out := args.In, args.Out
	if in == nil {
		in = os.Stdin
	}
	if out == nil {
		out = os.Stdout
	}
	return &resolver{in, out, bufio.NewReader(in)}
}

func (r *resolver) ChooseMethod(
	enabled []domain.TwoFactorMethod,
) (domain.TwoFactorMethod, error) {
	if len(enabled) <= 0 {
		return "", ErrNoMethodEnabled
	}
	if len(enabled) == 1 {
		fmt.Fprintf(r.out, "Using 2FA method %s\n", enabled[0])
		return enabled[0], nil
	}

	names := make([]string, 0, len(enabled))
	for _, m := range enabled {
		names = append(names, m.String())
	}
	prompt := fmt.Sprintf(
		"Select 2FA method (%s) [%s]: ", strings.Join(names, "/"), enabled[0],
	)

	for {
		fmt.Fprint(r.out, prompt)
		reply, err := r.readLine()
		if err != nil {
			return "", err
		}
		if reply == "" {
			return enabled[0], nil
		}

		method, err := domain.ParseTwoFactorMethod(reply)
		if err == nil && contains(enabled, method) {
			return method, nil
		}
		fmt.Fprintf(r.out, "Invalid 2FA method %q\n", reply)
	}
}

func (r *resolver) Code(method domain.TwoFactorMethod) (string, error) {
	prompt := fmt.Sprintf("Enter the code received via %s: ", method)
	if method == domain.TwoFactorGauth {
		prompt = "Enter the code of your authenticator app: "
	}

	for {
		fmt.Fprint(r.out, prompt)
		code, err := r.readSecret()
		if err != nil {
			return "", err
		}
		if code != "" {
			return code, nil
		}
	}
}

func (r *resolver) readLine() (string, error) {
	line, err := r.reader.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", fmt.Errorf("%w: %w", domain.ErrUserCanceled, err)
	}
	return strings.TrimSpace(line), nil
}

func (r *resolver) readSecret() (string, error) {
	file, ok := r.in.(*os.File)
	if !ok || !terminal.IsTerminal(int(file.Fd())) {
		return r.readLine()
	}

	buf, err := terminal.ReadPassword(int(file.Fd()))
	fmt.Fprint(r.out, "\n")
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrUserCanceled, err)
	}
	return strings.TrimSpace(string(buf)), nil
}

func contains(list []domain.TwoFactorMethod, method domain.TwoFactorMethod) bool {
	for _, m := range list {
		if m == method {
			return true
		}
	}
	return false
}
