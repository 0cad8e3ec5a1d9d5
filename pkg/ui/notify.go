package ui

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
)

// NotificationSender delivers one desktop notification
type NotificationSender interface {
	Send(ctx context.Context, title, message string) error
}

// LinuxNotificationSender uses notify-send
type LinuxNotificationSender struct{}

func (LinuxNotificationSender) Send(ctx context.Context, title, message string) error {
	return exec.CommandContext(ctx, "notify-send", "--app-name=igbackend", title, message).Run()
}

// MacOSNotificationSender uses osascript
type MacOSNotificationSender struct{}

func (MacOSNotificationSender) Send(ctx context.Context, title, message string) error {
	script := fmt.Sprintf("display notification %s with title %s", appleScriptString(message), appleScriptString(title))
	return exec.CommandContext(ctx, "osascript", "-e", script).Run()
}

// WindowsNotificationSender shows a balloon tip through PowerShell
type WindowsNotificationSender struct{}

func (WindowsNotificationSender) Send(ctx context.Context, title, message string) error {
	script := fmt.Sprintf(`Add-Type -AssemblyName System.Windows.Forms
$n = New-Object System.Windows.Forms.NotifyIcon
$n.Icon = [System.Drawing.SystemIcons]::Information
$n.Visible = $true
$n.ShowBalloonTip(5000, %s, %s, 'Info')
Start-Sleep -Seconds 6
$n.Dispose()`, powerShellString(title), powerShellString(message))
	return exec.CommandContext(ctx, "powershell", "-NoProfile", "-NonInteractive", "-Command", script).Run()
}

func appleScriptString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}

func powerShellString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// Notifier sends desktop notifications where the platform supports them
type Notifier struct {
	sender NotificationSender
}

// NewNotifier picks the sender for the current platform
func NewNotifier() *Notifier {
	switch runtime.GOOS {
	case "linux", "freebsd", "openbsd":
		return &Notifier{sender: LinuxNotificationSender{}}
	case "darwin":
		return &Notifier{sender: MacOSNotificationSender{}}
	case "windows":
		return &Notifier{sender: WindowsNotificationSender{}}
	}
	return &Notifier{}
}

// NewNotifierWithSender creates a notifier around an explicit sender
func NewNotifierWithSender(s NotificationSender) *Notifier {
	return &Notifier{sender: s}
}

// Supported reports whether notifications can be delivered at all
func (n *Notifier) Supported() bool {
	return n != nil && n.sender != nil
}

// Notify delivers a notification; unsupported platforms are a no-op
func (n *Notifier) Notify(ctx context.Context, title, message string) error {
	if !n.Supported() {
		return nil
	}
	if err := n.sender.Send(ctx, title, message); err != nil {
		return fmt.Errorf("failed to send notification: %w", err)
	}
	return nil
}
