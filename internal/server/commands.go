package server

import (
	"errors"
	"fmt"
	"strings"
)

// CommandKind identifies a parsed slash command.
type CommandKind int

const (
	CommandUnknown CommandKind = iota
	CommandWhisper
	CommandRename
	CommandKick
	CommandListClients
)

// Command is a parsed slash command. Name is the command token as typed and
// Args are the remaining single-space separated tokens.
type Command struct {
	Kind CommandKind
	Name string
	Args []string
}

// ParseCommand splits a line beginning with "/" on single spaces. The
// command name is matched case-insensitively.
func ParseCommand(line string) Command {
	tokens := strings.Split(strings.TrimPrefix(line, "/"), " ")
	cmd := Command{Name: tokens[0], Args: tokens[1:]}

	switch strings.ToLower(cmd.Name) {
	case "w":
		cmd.Kind = CommandWhisper
	case "username":
		cmd.Kind = CommandRename
	case "kick":
		cmd.Kind = CommandKick
	case "clientlist":
		cmd.Kind = CommandListClients
	default:
		cmd.Kind = CommandUnknown
	}
	return cmd
}

func (s *Server) execute(sender *Connection, cmd Command) *CommandError {
	switch cmd.Kind {
	case CommandWhisper:
		return s.whisper(sender, cmd.Args)
	case CommandRename:
		return s.rename(sender, cmd.Args)
	case CommandKick:
		return s.kickCommand(sender, cmd.Args)
	case CommandListClients:
		return s.listClients(sender)
	default:
		return protocolErrorf("unknown command: %s", cmd.Name)
	}
}

// whisper handles /w <name> <msg...>.
func (s *Server) whisper(sender *Connection, args []string) *CommandError {
	if len(args) < 2 || args[0] == "" {
		return validationErrorf("usage: /w <username> <message>")
	}
	targetName := args[0]
	body := strings.Join(args[1:], " ")

	target, err := s.registry.FindByName(targetName)
	if err != nil {
		return validationErrorf("no such user: %s", targetName)
	}
	if target.ID() == sender.ID() || targetName == sender.Name() {
		return validationErrorf("you cannot whisper yourself")
	}
	if strings.TrimSpace(body) == "" {
		return validationErrorf("usage: /w <username> <message>")
	}

	senderName := sender.Name()
	s.recorder.Record(fmt.Sprintf("whisper from %s to %s: %s", senderName, targetName, body))

	if !s.send(target, fmt.Sprintf("whisper from %s: %s", senderName, body)) {
		return validationErrorf("no such user: %s", targetName)
	}
	s.send(sender, "whisper sent to "+targetName)
	return nil
}

// rename handles /username <newname>.
func (s *Server) rename(sender *Connection, args []string) *CommandError {
	if len(args) != 1 || args[0] == "" {
		return validationErrorf("usage: /username <newname>")
	}
	newName := args[0]

	oldName, err := s.registry.Rename(sender.ID(), newName)
	switch {
	case errors.Is(err, ErrNameUnchanged):
		return validationErrorf("that is already your username")
	case errors.Is(err, ErrNameTaken):
		return validationErrorf("username already taken")
	case err != nil:
		s.logger.Error("invariant violation: renaming unregistered connection", "conn_id", sender.ID(), "error", err)
		return validationErrorf("rename failed")
	}

	s.recorder.Record(fmt.Sprintf("client %d renamed from %s to %s", sender.ID(), oldName, newName))
	s.broadcast(fmt.Sprintf("%s is now known as %s", oldName, newName))
	s.send(sender, "your username is now "+newName)
	return nil
}

// kickCommand handles /kick <name> <password>.
func (s *Server) kickCommand(sender *Connection, args []string) *CommandError {
	if len(args) != 2 || args[0] == "" {
		return validationErrorf("usage: /kick <username> <password>")
	}
	targetName, password := args[0], args[1]

	if !s.secret.Verify(password) {
		return validationErrorf("incorrect password")
	}
	target, err := s.registry.FindByName(targetName)
	if err != nil {
		return validationErrorf("no such user: %s", targetName)
	}
	if target.ID() == sender.ID() {
		return validationErrorf("you cannot kick yourself")
	}

	s.recorder.Record(fmt.Sprintf("client %d kicked %s", sender.ID(), targetName))

	// The target may already be gone; the kick still completes.
	if err := target.Send("you have been kicked"); err != nil {
		s.logger.Debug("could not notify kicked client", "conn_id", target.ID(), "error", err)
	}
	if !s.kick(target, sender) {
		return validationErrorf("no such user: %s", targetName)
	}
	return nil
}

// listClients handles /clientlist.
func (s *Server) listClients(sender *Connection) *CommandError {
	entries := s.registry.List()
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name)
	}
	s.send(sender, "connected clients: "+strings.Join(names, ", "))
	return nil
}
