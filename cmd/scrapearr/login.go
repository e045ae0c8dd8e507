package main

import (
	"bufio"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var challengeCmd = &cobra.Command{
	Use:   "challenge <site>",
	Short: "Fetch the login CAPTCHA of a site",
	Long: `Fetch the login page of a site and save its CAPTCHA image, if one is shown.

The challenge id, answer field and cookies are kept in the store until
'login' answers it:
  scrapearr challenge rutracker
  scrapearr login rutracker --captcha <answer>`,
	Args: cobra.ExactArgs(1),
	RunE: runChallengeCmd,
}

var loginCmd = &cobra.Command{
	Use:   "login <site>",
	Short: "Log in to a site and store the session",
	Long: `Log in to a site with the configured credentials and store the session
cookies for later searches.

Without --captcha a CAPTCHA shown by the site is saved to --image and its
answer is read from standard input.`,
	Args: cobra.ExactArgs(1),
	RunE: runLoginCmd,
}

func init() {
	rootCmd.AddCommand(challengeCmd)
	rootCmd.AddCommand(loginCmd)
	challengeCmd.Flags().StringP("out", "o", "", "Image path (default: <site>-captcha.<ext>)")
	loginCmd.Flags().String("captcha", "", "CAPTCHA answer")
	loginCmd.Flags().String("sid", "", "CAPTCHA id (default: the one stored by 'challenge')")
	loginCmd.Flags().String("field", "", "CAPTCHA answer field (default: the one stored by 'challenge')")
	loginCmd.Flags().String("image", "", "Where to save a CAPTCHA shown during login")
}

func runChallengeCmd(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	t, err := a.target(args[0])
	if err != nil {
		return err
	}
	ch, err := t.Session.PrepareChallenge(ctx)
	if err != nil {
		return fmt.Errorf("challenge: %w", err)
	}

	out := cmd.OutOrStdout()
	if ch.Empty() {
		fmt.Fprintf(out, "%s shows no CAPTCHA; run 'scrapearr login %s'\n", args[0], args[0])
		return nil
	}

	if err := a.store.SaveChallenge(ctx, args[0], ch); err != nil {
		return err
	}

	path, _ := cmd.Flags().GetString("out")
	if path == "" {
		path = args[0] + "-captcha" + imageExt(ch.Image)
	}
	if err := os.WriteFile(path, ch.Image, 0o644); err != nil {
		return fmt.Errorf("write image: %w", err)
	}

	if jsonOutput {
		return printJSON(out, map[string]string{"image": path, "sid": ch.SID, "field": ch.Field})
	}
	fmt.Fprintf(out, "CAPTCHA saved to %s\n\n", path)
	fmt.Fprintf(out, "  sid:   %s\n  field: %s\n\n", ch.SID, ch.Field)
	fmt.Fprintf(out, "scrapearr login %s --captcha <answer>\n", args[0])
	return nil
}

func runLoginCmd(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	answer, _ := cmd.Flags().GetString("captcha")
	sid, _ := cmd.Flags().GetString("sid")
	field, _ := cmd.Flags().GetString("field")
	imagePath, _ := cmd.Flags().GetString("image")

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	t, err := a.target(args[0])
	if err != nil {
		return err
	}
	sess := t.Session
	settings := sess.Settings()
	out := cmd.OutOrStdout()

	switch {
	case answer != "":
		stored, err := a.store.LoadChallenge(ctx, args[0])
		if err != nil {
			return err
		}
		if stored == nil && sid == "" {
			return fmt.Errorf("no pending challenge for %s; run 'scrapearr challenge %s' first", args[0], args[0])
		}
		if stored != nil && (sid == "" || sid == stored.SID) {
			settings.CaptchaSID, settings.CaptchaField, settings.CaptchaCookies = stored.SID, stored.Field, stored.Cookies
		}
		if sid != "" {
			settings.CaptchaSID = sid
		}
		if field != "" {
			settings.CaptchaField = field
		}
	case t.Adapter.Site().Login.Captcha != nil:
		ch, err := sess.PrepareChallenge(ctx)
		if err != nil {
			return fmt.Errorf("challenge: %w", err)
		}
		if !ch.Empty() {
			if imagePath == "" {
				imagePath = args[0] + "-captcha" + imageExt(ch.Image)
			}
			if err := os.WriteFile(imagePath, ch.Image, 0o644); err != nil {
				return fmt.Errorf("write image: %w", err)
			}
			fmt.Fprintf(out, "CAPTCHA saved to %s\n", imagePath)
			if answer, err = prompt(cmd.InOrStdin(), out, "Answer: "); err != nil {
				return err
			}
		}
	}

	if err := sess.Authenticate(ctx, settings, answer); err != nil {
		return err
	}
	if answer != "" {
		if err := a.store.DeleteChallenge(ctx, args[0]); err != nil {
			a.log.Warn("forgetting answered challenge", "error", err)
		}
	}
	if err := a.sessions.Save(ctx, a.store); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	fmt.Fprintf(out, "Logged in to %s\n", args[0])
	return nil
}

func prompt(in io.Reader, out io.Writer, label string) (string, error) {
	fmt.Fprint(out, label)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("reading answer: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func imageExt(data []byte) string {
	switch http.DetectContentType(data) {
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	default:
		return ".jpg"
	}
}
