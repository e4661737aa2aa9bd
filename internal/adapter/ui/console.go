package ui

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/manifoldco/promptui"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"tg-chatdump/internal/domain"
)

// ConsoleUI handles user interactions via the terminal.
type ConsoleUI struct {
	progress       *mpb.Progress
	nonInteractive bool
}

func NewConsoleUI(nonInteractive bool) *ConsoleUI {
	var p *mpb.Progress
	if !nonInteractive {
		p = mpb.New(mpb.WithWidth(64))
	}
	return &ConsoleUI{
		progress:       p,
		nonInteractive: nonInteractive,
	}
}

// Progress Reporter Implementation

func (u *ConsoleUI) Start(name string, total int64) domain.ProgressTask {
	if u.nonInteractive {
		return &nonInteractiveTask{
			name:      name,
			total:     total,
			startTime: time.Now(),
		}
	}

	bar := u.progress.AddBar(total,
		mpb.PrependDecorators(
			decor.Name(name, decor.WC{W: len(name) + 1}),
			decor.Counters(decor.SizeB1024(0), "% .2f / % .2f", decor.WCSyncSpace),
		),
		mpb.AppendDecorators(
			decor.OnComplete(
				decor.Percentage(decor.WCSyncSpace), "done",
			),
			decor.AverageSpeed(decor.SizeB1024(0), "% .2f", decor.WCSyncSpace),
		),
	)
	return &mpbTask{bar: bar}
}

func (u *ConsoleUI) Wait() {
	if u.nonInteractive {
		return
	}
	u.progress.Wait()
	// Re-initialize progress for next use if needed
	u.progress = mpb.New(mpb.WithWidth(64))
}

type mpbTask struct {
	bar *mpb.Bar
}

func (t *mpbTask) Increment(n int) {
	t.bar.IncrBy(n)
}

func (t *mpbTask) SetCurrent(current int64) {
	t.bar.SetCurrent(current)
}

func (t *mpbTask) Complete() {
	t.bar.SetTotal(-1, true)
}

type nonInteractiveTask struct {
	name      string
	total     int64
	current   int64
	startTime time.Time
}

func (t *nonInteractiveTask) Increment(n int) {
	t.current += int64(n)
}

func (t *nonInteractiveTask) SetCurrent(current int64) {
	t.current = current
}

func (t *nonInteractiveTask) Complete() {
	elapsed := time.Since(t.startTime).Seconds()
	speed := float64(t.current) / elapsed
	fmt.Printf("Finished: %s | Size: %s | Speed: %s/s\n",
		t.name,
		formatSize(t.current),
		formatSize(int64(speed)),
	)
}

func formatSize(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(b)/float64(div), "KMGTPE"[exp])
}

// GetPhoneNumber prompts the user for their phone number.
func (u *ConsoleUI) GetPhoneNumber() (string, error) {
	prompt := promptui.Prompt{
		Label: "Enter Phone Number (international format, e.g. +39...)",
		Validate: func(input string) error {
			if len(input) < 5 {
				return errors.New("phone number too short")
			}
			return nil
		},
	}
	return prompt.Run()
}

// GetCode prompts the user for the authentication code.
func (u *ConsoleUI) GetCode() (string, error) {
	prompt := promptui.Prompt{
		Label: "Enter Code",
		Validate: func(input string) error {
			if len(input) == 0 {
				return errors.New("code cannot be empty")
			}
			return nil
		},
	}
	return prompt.Run()
}

// GetPassword prompts the user for their 2FA password.
func (u *ConsoleUI) GetPassword() (string, error) {
	prompt := promptui.Prompt{
		Label: "Enter 2FA Password",
		Mask:  '*',
	}
	return prompt.Run()
}

// SelectDialog prompts the user to pick a conversation from the list.
func (u *ConsoleUI) SelectDialog(dialogs []domain.Dialog) (domain.Dialog, error) {
	if len(dialogs) == 0 {
		return domain.Dialog{}, errors.New("no dialogs available")
	}

	templates := &promptui.SelectTemplates{
		Label:    "{{ . }}?",
		Active:   "\U0001F449 {{ .Title | cyan }}",
		Inactive: "  {{ .Title | white }}",
		Selected: "\U0001F44D {{ .Title | green | cyan }}",
	}

	prompt := promptui.Select{
		Label:     "Select Chat",
		Items:     dialogs,
		Templates: templates,
		Size:      10,
		Searcher: func(input string, index int) bool {
			dialog := dialogs[index]
			name := strings.Replace(strings.ToLower(dialog.Title), " ", "", -1)
			input = strings.Replace(strings.ToLower(input), " ", "", -1)
			return strings.Contains(name, input)
		},
	}

	i, _, err := prompt.Run()
	if err != nil {
		return domain.Dialog{}, err
	}

	return dialogs[i], nil
}

// PrintDialogs renders the dialog listing for non-interactive use.
func (u *ConsoleUI) PrintDialogs(dialogs []domain.Dialog) {
	for _, d := range dialogs {
		handle := ""
		if d.Username != "" {
			handle = " @" + d.Username
		}
		fmt.Printf("%15d  %-10s %s%s\n", d.ID, d.Kind, d.Title, handle)
	}
}

// PrintSummary renders per-chat sync outcomes after a batch run.
func (u *ConsoleUI) PrintSummary(results []domain.SyncResult) {
	for _, r := range results {
		title := r.ChatTitle
		if title == "" {
			title = r.Ref
		}
		if r.Error != "" {
			fmt.Printf("FAILED  %s: %s\n", title, r.Error)
			continue
		}
		fmt.Printf("OK      %s: %d new, %d skipped, %d media, %d comments",
			title, r.MessagesDownloaded, r.MessagesSkipped, r.MediaDownloaded, r.CommentsFetched)
		if r.Errors > 0 {
			fmt.Printf(", %d transfer errors", r.Errors)
		}
		fmt.Println()
	}
}
