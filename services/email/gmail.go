package emailsvc

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/mail"
	"os"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/trezcool/trackademic/core"
)

const gmailSendTimeout = 30 * time.Second

type gmailService struct {
	api        *gmail.Service
	from       mail.Address
	subjPrefix string
	logger     core.Logger
	wg         sync.WaitGroup
}

var _ core.EmailService = (*gmailService)(nil)

// NewGmailService sends through the Gmail API, authorized by an OAuth client (credentials file)
// and a previously granted token (token file).
func NewGmailService(ctx context.Context, conf *core.Config, logger core.Logger) (*gmailService, error) {
	creds, err := os.ReadFile(conf.Email.GmailCredentialsFile)
	if err != nil {
		return nil, errors.Wrap(err, "reading gmail credentials")
	}
	oauthConf, err := google.ConfigFromJSON(creds, gmail.GmailSendScope)
	if err != nil {
		return nil, errors.Wrap(err, "parsing gmail credentials")
	}
	tok, err := readToken(conf.Email.GmailTokenFile)
	if err != nil {
		return nil, err
	}

	api, err := gmail.NewService(ctx, option.WithHTTPClient(oauthConf.Client(ctx, tok)))
	if err != nil {
		return nil, errors.Wrap(err, "creating gmail client")
	}
	return newGmailService(api, conf, logger), nil
}

func newGmailService(api *gmail.Service, conf *core.Config, logger core.Logger) *gmailService {
	return &gmailService{
		api:        api,
		from:       conf.DefaultFromEmail,
		subjPrefix: "[" + conf.AppName + "] ",
		logger:     logger,
	}
}

func readToken(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening gmail token")
	}
	defer func() { _ = f.Close() }()

	tok := new(oauth2.Token)
	if err = json.NewDecoder(f).Decode(tok); err != nil {
		return nil, errors.Wrap(err, "decoding gmail token")
	}
	return tok, nil
}

func (svc *gmailService) SendMessages(messages ...*core.EmailMessage) {
	for _, msg := range messages {
		msg := msg
		svc.wg.Add(1)
		go func() {
			defer svc.wg.Done()
			if err := msg.Render(); err != nil {
				svc.logger.Error(fmt.Sprintf("rendering email: %v", err), err)
				return
			}
			if !(msg.HasRecipients() && msg.HasContent()) {
				return
			}
			if err := svc.send(msg); err != nil {
				svc.logger.Error(fmt.Sprintf("sending email: %v", err), err)
			}
		}()
	}
}

// Wait blocks until every message handed to SendMessages has been sent (or has failed).
func (svc *gmailService) Wait() {
	svc.wg.Wait()
}

func (svc *gmailService) send(msg *core.EmailMessage) error {
	raw, err := buildMIME(svc.from, svc.subjPrefix+msg.Subject, msg)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), gmailSendTimeout)
	defer cancel()

	_, err = svc.api.Users.Messages.Send("me", &gmail.Message{Raw: base64.URLEncoding.EncodeToString(raw)}).Context(ctx).Do()
	return errors.Wrap(err, "gmail send")
}
