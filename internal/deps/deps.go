package deps

import (
	"os/exec"
	"strings"
)

// Status is the install state of one external tool.
type Status struct {
	Name      string
	Installed bool
	Path      string
	Version   string
	Purpose   string
}

type tool struct {
	name        string
	versionArgs []string
	purpose     string
}

// The desktop flow shells out for capture, delivery and notifications.
var tools = []tool{
	{name: "pw-record", versionArgs: []string{"--version"}, purpose: "microphone capture"},
	{name: "wl-copy", versionArgs: []string{"--version"}, purpose: "clipboard delivery"},
	{name: "wl-paste", versionArgs: []string{"--version"}, purpose: "clipboard restore"},
	{name: "wtype", versionArgs: nil, purpose: "direct typing"},
	{name: "notify-send", versionArgs: []string{"--version"}, purpose: "desktop notifications"},
	{name: "xdg-open", versionArgs: []string{"--version"}, purpose: "opening the dashboard"},
}

func check(t tool) Status {
	s := Status{Name: t.name, Purpose: t.purpose}

	path, err := exec.LookPath(t.name)
	if err != nil {
		return s
	}
	s.Installed = true
	s.Path = path

	if len(t.versionArgs) > 0 {
		out, err := exec.Command(path, t.versionArgs...).Output()
		if err == nil {
			lines := strings.Split(string(out), "\n")
			if len(lines) > 0 {
				s.Version = strings.TrimSpace(lines[0])
			}
		}
	}
	return s
}

// CheckAll reports the install state of every external tool the
// desktop flow depends on.
func CheckAll() []Status {
	out := make([]Status, len(tools))
	for i, t := range tools {
		out[i] = check(t)
	}
	return out
}

// Check looks up a single tool by name.
func Check(name string) Status {
	for _, t := range tools {
		if t.name == name {
			return check(t)
		}
	}
	return Status{Name: name}
}
