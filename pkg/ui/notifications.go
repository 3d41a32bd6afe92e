package ui

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"time"
)

// NotificationSender delivers a desktop notification
type NotificationSender interface {
	Send(ctx context.Context, title, message string) error
}

// LinuxNotificationSender sends notifications on Linux using notify-send
type LinuxNotificationSender struct{}

func (l *LinuxNotificationSender) Send(ctx context.Context, title, message string) error {
	return exec.CommandContext(ctx, "notify-send", "--app-name=imgurcomments", title, message).Run()
}

// MacOSNotificationSender sends notifications on macOS using osascript
type MacOSNotificationSender struct{}

func (m *MacOSNotificationSender) Send(ctx context.Context, title, message string) error {
	script := fmt.Sprintf(`display notification %s with title %s`, appleScriptString(message), appleScriptString(title))
	return exec.CommandContext(ctx, "osascript", "-e", script).Run()
}

func appleScriptString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}

// WindowsNotificationSender sends notifications on Windows using PowerShell
type WindowsNotificationSender struct{}

func (w *WindowsNotificationSender) Send(ctx context.Context, title, message string) error {
	script := fmt.Sprintf(`
		[Windows.UI.Notifications.ToastNotificationManager, Windows.UI.Notifications, ContentType = WindowsRuntime] | Out-Null
		$template = [Windows.UI.Notifications.ToastNotificationManager]::GetTemplateContent([Windows.UI.Notifications.ToastTemplateType]::ToastText02)
		$text = $template.GetElementsByTagName("text")
		$text.Item(0).AppendChild($template.CreateTextNode(%s)) | Out-Null
		$text.Item(1).AppendChild($template.CreateTextNode(%s)) | Out-Null
		$toast = [Windows.UI.Notifications.ToastNotification]::new($template)
		[Windows.UI.Notifications.ToastNotificationManager]::CreateToastNotifier("imgurcomments").Show($toast)
	`, powerShellString(title), powerShellString(message))

	return exec.CommandContext(ctx, "powershell", "-NoProfile", "-NonInteractive", "-Command", script).Run()
}

func powerShellString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// Notifier reports the end of long syncs on the console and, where the
// platform supports it, as a desktop notification
type Notifier struct {
	sender  NotificationSender
	printer *Printer
	timeout time.Duration
}

// NewNotifier creates a Notifier for the current platform
func NewNotifier(p *Printer) *Notifier {
	var sender NotificationSender
	switch runtime.GOOS {
	case "linux":
		sender = &LinuxNotificationSender{}
	case "darwin":
		sender = &MacOSNotificationSender{}
	case "windows":
		sender = &WindowsNotificationSender{}
	}
	return NewNotifierWithSender(p, sender)
}

// NewNotifierWithSender creates a Notifier with an explicit sender; nil
// keeps notifications on the console only
func NewNotifierWithSender(p *Printer, sender NotificationSender) *Notifier {
	if p == nil {
		p = std
	}
	return &Notifier{sender: sender, printer: p, timeout: 5 * time.Second}
}

// SendSuccess announces a finished sync
func (n *Notifier) SendSuccess(ctx context.Context, title, message string) error {
	n.printer.Printf("%s: %s\n", n.printer.Green(title), message)
	return n.send(ctx, title, message)
}

// SendError announces a failed sync
func (n *Notifier) SendError(ctx context.Context, title, message string) error {
	n.printer.PrintError(title, message)
	return n.send(ctx, title, message)
}

func (n *Notifier) send(ctx context.Context, title, message string) error {
	if n.sender == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()
	if err := n.sender.Send(ctx, title, message); err != nil {
		return fmt.Errorf("desktop notification: %w", err)
	}
	return nil
}
