// Package ucli implements the cli builder with urfave/cli. Every flag can also
// be set through an environment variable when the builder has a prefix, for
// instance CONCORD_MINERS for the flag "miners".
package ucli

import (
	"fmt"
	"strings"

	urfave "github.com/urfave/cli/v2"
	"go.dedis.ch/concord/cli"
	"golang.org/x/xerrors"
)

// Builder builds an application made of commands without subcommands.
//
// - implements cli.Builder
type Builder struct {
	name      string
	usage     string
	envPrefix string
	commands  []*cmdBuilder
}

// NewBuilder returns a builder of an application without commands.
func NewBuilder(name, usage string) *Builder {
	return &Builder{
		name:  name,
		usage: usage,
	}
}

// SetEnvPrefix sets the prefix of the environment variables that can replace
// the flags. An empty prefix disables them.
func (b *Builder) SetEnvPrefix(prefix string) {
	b.envPrefix = prefix
}

// SetCommand implements cli.Builder.
func (b *Builder) SetCommand(name string) cli.CommandBuilder {
	cmd := &cmdBuilder{name: name}
	b.commands = append(b.commands, cmd)

	return cmd
}

// Build implements cli.Builder. It panics if a flag has an unsupported type.
func (b *Builder) Build() cli.Application {
	app := &urfave.App{
		Name:     b.name,
		Usage:    b.usage,
		Commands: make([]*urfave.Command, len(b.commands)),
	}

	for i, cmd := range b.commands {
		app.Commands[i] = cmd.build(b.envPrefix)
	}

	app.Setup()

	return app
}

// cmdBuilder keeps the definition of a command until the application is
// built.
//
// - implements cli.CommandBuilder
type cmdBuilder struct {
	name   string
	usage  string
	action cli.Action
	flags  []cli.Flag
}

// SetDescription implements cli.CommandBuilder.
func (b *cmdBuilder) SetDescription(value string) {
	b.usage = value
}

// SetFlags implements cli.CommandBuilder.
func (b *cmdBuilder) SetFlags(flags ...cli.Flag) {
	b.flags = flags
}

// SetAction implements cli.CommandBuilder.
func (b *cmdBuilder) SetAction(action cli.Action) {
	b.action = action
}

func (b *cmdBuilder) build(envPrefix string) *urfave.Command {
	flags := make([]urfave.Flag, len(b.flags))
	for i, f := range b.flags {
		flags[i] = convertFlag(f, envPrefix)
	}

	name := b.name
	action := b.action

	return &urfave.Command{
		Name:  name,
		Usage: b.usage,
		Flags: flags,
		Action: func(ctx *urfave.Context) error {
			if action == nil {
				return xerrors.Errorf("command '%s' has no action", name)
			}

			// The urfave context provides every getter of cli.Flags.
			return action(ctx)
		},
	}
}

// convertFlag returns the urfave flag of the definition.
func convertFlag(f cli.Flag, envPrefix string) urfave.Flag {
	switch e := f.(type) {
	case cli.StringFlag:
		return &urfave.StringFlag{
			Name:    e.Name,
			Usage:   e.Usage,
			Value:   e.Value,
			EnvVars: envVars(envPrefix, e.Name),
		}
	case cli.DurationFlag:
		return &urfave.DurationFlag{
			Name:    e.Name,
			Usage:   e.Usage,
			Value:   e.Value,
			EnvVars: envVars(envPrefix, e.Name),
		}
	case cli.IntFlag:
		return &urfave.IntFlag{
			Name:    e.Name,
			Usage:   e.Usage,
			Value:   e.Value,
			EnvVars: envVars(envPrefix, e.Name),
		}
	case cli.BoolFlag:
		return &urfave.BoolFlag{
			Name:    e.Name,
			Usage:   e.Usage,
			Value:   e.Value,
			EnvVars: envVars(envPrefix, e.Name),
		}
	default:
		panic(fmt.Sprintf("flag type '%T' not supported", f))
	}
}

// envVars returns the environment variable of the flag, like MY_APP_DATA_DIR
// for the prefix "my-app" and the flag "data-dir".
func envVars(prefix, name string) []string {
	if prefix == "" {
		return nil
	}

	key := strings.ToUpper(prefix + "_" + name)

	return []string{strings.ReplaceAll(key, "-", "_")}
}
