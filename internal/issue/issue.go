// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"github.com/charmbracelet/glamour"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

type Id int

const (
	ServerUnreachableId Id = iota + 1
	BaseDirUnavailableId
	PortUnavailableId
	ConfigLoadFailedId
	CommandNotFoundId
	ScriptFailedId
	FileChannelTimeoutId
	ScriptStoreUnavailableId
)

type MarkdownMsg string

type HttpLink string

type Issue struct {
	id       Id          // ID used to lookup the issue
	mdMsg    MarkdownMsg // Markdown text that will be rendered
	docLinks []HttpLink
	extLinks []HttpLink
}

func (i *Issue) Id() Id {
	return i.id
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

func (i *Issue) DocLinks() []HttpLink {
	return slices.Clone(i.docLinks)
}

func (i *Issue) ExtLinks() []HttpLink {
	return slices.Clone(i.extLinks)
}

// Render renders the Markdown guidance with glamour. An empty stylePath
// selects glamour's automatic style.
func (i *Issue) Render(stylePath string) (string, error) {
	extraMd := ""
	if len(i.docLinks) > 0 || len(i.extLinks) > 0 {
		extraMd += "\n\n## See also\n"
		for _, link := range i.docLinks {
			extraMd += "- <" + string(link) + ">\n"
		}
		for _, link := range i.extLinks {
			extraMd += "- <" + string(link) + ">\n"
		}
	}
	if stylePath == "" {
		stylePath = "auto"
	}
	return render(string(i.mdMsg)+extraMd, stylePath)
}

var (
	render = glamour.Render

	serverUnreachableIssue = &Issue{
		id: ServerUnreachableId,
		mdMsg: `
# Console not reachable!

Neither the socket listed in the port record nor the file channel answered.

## Things you can try
- Check that the host process embedding the console is running
- Print the port record the client is reading:
~~~
$ remcon exec port show
~~~
- Point the client at the right base directory:
~~~
$ remcon --config ./config.cue exec help
~~~`,
		extLinks: []HttpLink{"https://pkg.go.dev/net#Dial"},
	}

	baseDirUnavailableIssue = &Issue{
		id: BaseDirUnavailableId,
		mdMsg: `
# No writable base directory!

The file channel needs a writable directory for session files and the port
record. Every configured candidate was rejected.

## Things you can try
- Create one of the directories listed in ` + "`file_channel.base_dirs`" + `
- Add a directory you own to the list in your config:
~~~cue
file_channel: {
  base_dirs: ["${XDG_RUNTIME_DIR}/remcon", "/tmp/remcon"]
}
~~~
- Remove a stale marker file so probing starts over`,
	}

	portUnavailableIssue = &Issue{
		id: PortUnavailableId,
		mdMsg: `
# Port unavailable!

The requested console port is busy or not permitted.

## Things you can try
- Pick a free port between 1024 and 65535:
~~~
$ remcon exec port update 21451
~~~
- Set ` + "`server.port: 0`" + ` to let the system choose one`,
	}

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Failed to load configuration!

## Configuration file locations
- Linux: ~/.config/remcon/config.cue
- macOS: ~/Library/Application Support/remcon/config.cue
- Windows: %APPDATA%\remcon\config.cue

## Things you can try
- Write a fresh default file:
~~~
$ remcon config init
~~~
- Show the effective configuration:
~~~
$ remcon config show
~~~`,
	}

	commandNotFoundIssue = &Issue{
		id: CommandNotFoundId,
		mdMsg: `
# Command not found!

## Things you can try
- List every registered command with its help:
~~~
$ remcon exec help
~~~
- Check for typos; command names are case-sensitive`,
	}

	scriptFailedIssue = &Issue{
		id: ScriptFailedId,
		mdMsg: `
# Script failed!

The script raised an error. The REPL keeps running; only the failing
statement was discarded.

## Things you can try
- Inspect a value with ` + "`analyze(v)`" + `
- List the variables of the current domain with ` + "`svars`" + `
- Start over with ` + "`sclear`",
	}

	fileChannelTimeoutIssue = &Issue{
		id: FileChannelTimeoutId,
		mdMsg: `
# File channel timed out!

The request was written but no result appeared in time. The broker polls
the sessions directory at a fixed interval; a missing result usually means
no broker is running for this base directory.

## Things you can try
- Increase the client timeout: ` + "`remcon exec --timeout 30s ...`" + `
- Check that the host process uses the same base directory`,
	}

	scriptStoreUnavailableIssue = &Issue{
		id: ScriptStoreUnavailableId,
		mdMsg: `
# Script store unavailable!

Saved scripts could not be read or written.

## Things you can try
- For the file store, check permissions of ` + "`scripts.dir`" + `
- For the Redis store, check ` + "`scripts.redis.addr`" + ` and that the server is up`,
	}

	issues = map[Id]*Issue{
		serverUnreachableIssue.Id():      serverUnreachableIssue,
		baseDirUnavailableIssue.Id():     baseDirUnavailableIssue,
		portUnavailableIssue.Id():        portUnavailableIssue,
		configLoadFailedIssue.Id():       configLoadFailedIssue,
		commandNotFoundIssue.Id():        commandNotFoundIssue,
		scriptFailedIssue.Id():           scriptFailedIssue,
		fileChannelTimeoutIssue.Id():     fileChannelTimeoutIssue,
		scriptStoreUnavailableIssue.Id(): scriptStoreUnavailableIssue,
	}
)

// Values returns every catalog entry ordered by id.
func Values() []*Issue {
	catalog := maps.Clone(issues)
	out := make([]*Issue, 0, len(catalog))
	for _, v := range catalog {
		out = append(out, v)
	}
	slices.SortFunc(out, func(a, b *Issue) int { return int(a.id) - int(b.id) })
	return out
}

func Get(id Id) *Issue {
	return issues[id]
}
