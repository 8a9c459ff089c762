package earthdata

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/bgentry/go-netrc/netrc"
	"golang.org/x/term"
)

// ErrNonInteractive is returned when credentials must be prompted for but
// stdin is not a terminal.
var ErrNonInteractive = errors.New("earthdata: no stored credentials and no terminal to prompt on")

// Login is a username/password pair for a host.
type Login struct {
	Username string
	Password string
}

// DefaultNetrcPath returns the platform netrc location. $NETRC takes
// precedence.
func DefaultNetrcPath() string {
	if p := os.Getenv("NETRC"); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	name := ".netrc"
	if runtime.GOOS == "windows" {
		name = "_netrc"
	}
	return filepath.Join(home, name)
}

// lookupNetrc returns the login for host, or ok=false if the file or entry is
// missing or incomplete.
func lookupNetrc(path, host string) (Login, bool, error) {
	n, err := netrc.ParseFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Login{}, false, nil
	}
	if err != nil {
		// A file we cannot read at all is a real problem; a file we cannot
		// parse is treated as a missing entry and gets rewritten.
		if errors.Is(err, fs.ErrPermission) {
			return Login{}, false, fmt.Errorf("read %s: %w", path, err)
		}
		return Login{}, false, nil
	}

	m := n.FindMachine(host)
	if m == nil || m.IsDefault() || m.Login == "" || m.Password == "" {
		return Login{}, false, nil
	}
	return Login{Username: m.Login, Password: m.Password}, true, nil
}

// storeNetrc writes the login for host, replacing an existing entry. The
// file is created with mode 0600 if it does not exist.
func storeNetrc(path, host string, login Login) error {
	n, err := netrc.ParseFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return appendNetrc(path, host, login)
		}
		n, err = netrc.Parse(strings.NewReader(""))
		if err != nil {
			return fmt.Errorf("new netrc: %w", err)
		}
	}

	// An existing entry may lack the login or password token, so replace it
	// rather than updating in place.
	n.RemoveMachine(host)
	n.NewMachine(host, login.Username, login.Password, "")

	data, err := n.MarshalText()
	if err != nil {
		return fmt.Errorf("marshal netrc: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// appendNetrc appends a machine entry to a file the netrc parser rejects,
// leaving its existing content untouched.
func appendNetrc(path, host string, login Login) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	_, err = fmt.Fprintf(f, "\nmachine %s\n    login %s\n    password %s\n", host, login.Username, login.Password)
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// Prompter asks the user for a login.
type Prompter interface {
	Prompt(host string) (Login, error)
}

// TerminalPrompter prompts on a terminal. The password is read without echo.
type TerminalPrompter struct {
	In  *os.File
	Out io.Writer
}

// Prompt implements Prompter.
func (p TerminalPrompter) Prompt(host string) (Login, error) {
	in := p.In
	if in == nil {
		in = os.Stdin
	}
	out := p.Out
	if out == nil {
		out = os.Stderr
	}

	fd := int(in.Fd())
	if !term.IsTerminal(fd) {
		return Login{}, ErrNonInteractive
	}

	fmt.Fprintf(out, "Please provide Earthdata Login credentials for %s.\n", host)
	fmt.Fprint(out, "Username: ")
	username, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return Login{}, fmt.Errorf("read username: %w", err)
	}

	fmt.Fprint(out, "Password: ")
	password, err := term.ReadPassword(fd)
	fmt.Fprintln(out)
	if err != nil {
		return Login{}, fmt.Errorf("read password: %w", err)
	}

	login := Login{
		Username: strings.TrimSpace(username),
		Password: string(password),
	}
	if login.Username == "" || login.Password == "" {
		return Login{}, errors.New("earthdata: empty username or password")
	}
	return login, nil
}
