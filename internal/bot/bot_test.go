package bot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gotd/td/tg"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"github.com/tgdrive/filestore/internal/cache"
	"github.com/tgdrive/filestore/internal/database"
	"github.com/tgdrive/filestore/internal/filestore"
	"github.com/tgdrive/filestore/internal/metrics"
	"github.com/tgdrive/filestore/internal/settings"
	"github.com/tgdrive/filestore/pkg/models"
	"github.com/tgdrive/filestore/pkg/services"
)

type sentText struct {
	peer tg.InputPeerClass
	id   int
	text string
}

type fakeMessenger struct {
	mu   sync.Mutex
	sent []sentText
}

func (m *fakeMessenger) SendText(_ context.Context, peer tg.InputPeerClass, text string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := 100 + len(m.sent)
	m.sent = append(m.sent, sentText{peer: peer, id: id, text: text})
	return id, nil
}

func (m *fakeMessenger) DeleteMessage(context.Context, tg.InputPeerClass, int) error {
	return nil
}

func (m *fakeMessenger) texts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.sent))
	for _, s := range m.sent {
		out = append(out, s.text)
	}
	return out
}

type scheduled struct {
	peer  tg.InputPeerClass
	msgID int
	after time.Duration
}

type fakeScheduler struct {
	jobs []scheduled
}

func (s *fakeScheduler) Schedule(peer tg.InputPeerClass, msgID int, after time.Duration) error {
	s.jobs = append(s.jobs, scheduled{peer: peer, msgID: msgID, after: after})
	return nil
}

type fakeShortener struct {
	short string
	calls []string
}

func (s *fakeShortener) Shorten(_ context.Context, longURL string) string {
	s.calls = append(s.calls, longURL)
	if s.short == "" {
		return longURL
	}
	return s.short
}

type brokenBlobs struct{}

func (brokenBlobs) Save(context.Context, string, filestore.WriteFunc) (*filestore.Blob, error) {
	return nil, errors.New("disk full")
}

func document(id int64, name, content string) *Document {
	return &Document{
		ID:   id,
		Name: name,
		Fetch: func(_ context.Context, w io.Writer) error {
			_, err := io.WriteString(w, content)
			return err
		},
	}
}

type BotSuite struct {
	suite.Suite
	ctx       context.Context
	dir       string
	files     *services.FileService
	messenger *fakeMessenger
	scheduler *fakeScheduler
	shortener *fakeShortener
	settings  *settings.Settings
	bot       *Bot
	peer      tg.InputPeerClass
}

func TestBotSuite(t *testing.T) {
	suite.Run(t, new(BotSuite))
}

func (s *BotSuite) SetupTest() {
	s.ctx = context.Background()
	s.dir = s.T().TempDir()
	disk, err := filestore.NewDisk(s.dir)
	s.Require().NoError(err)

	s.files = services.NewFileService(database.NewTestDatabase(s.T()), cache.NewMemoryCache(1024*1024), time.Minute)
	s.messenger = &fakeMessenger{}
	s.scheduler = &fakeScheduler{}
	s.shortener = &fakeShortener{short: "http://s/ab"}
	s.settings = settings.New(false, 0)
	s.peer = &tg.InputPeerUser{UserID: 10, AccessHash: 20}
	s.bot = New(Options{
		Messenger:  s.messenger,
		Records:    s.files,
		Blobs:      disk,
		Shortener:  s.shortener,
		Scheduler:  s.scheduler,
		Settings:   s.settings,
		LinkDomain: "yourdomain.com",
	})
}

func (s *BotSuite) send(text string) {
	s.Require().NoError(s.bot.Handle(s.ctx, &Update{Peer: s.peer, MessageID: 1, Text: text}))
}

func (s *BotSuite) upload(doc *Document) error {
	return s.bot.Handle(s.ctx, &Update{Peer: s.peer, MessageID: 2, Document: doc})
}

func (s *BotSuite) lastReply() string {
	texts := s.messenger.texts()
	s.Require().NotEmpty(texts)
	return texts[len(texts)-1]
}

func (s *BotSuite) create(name string) *models.File {
	f, err := s.files.Create(s.ctx, name, name, "http://yourdomain.com/"+name)
	s.Require().NoError(err)
	return f
}

func (s *BotSuite) TestStart() {
	s.send("/start")
	s.Equal(textWelcome, s.lastReply())
}

func (s *BotSuite) TestUploadWithoutShortener() {
	stored := testutil.ToFloat64(metrics.FilesStored)
	s.Require().NoError(s.upload(document(7, "report.pdf", "pdf bytes")))
	s.Equal(stored+1, testutil.ToFloat64(metrics.FilesStored))

	s.Equal(`File "report.pdf" has been stored! Link: http://yourdomain.com/report.pdf`, s.lastReply())
	s.Empty(s.shortener.calls)
	s.Empty(s.scheduler.jobs)

	f, err := s.files.GetByID(s.ctx, 1)
	s.Require().NoError(err)
	s.Equal("report.pdf", f.FileName)
	s.Equal("report.pdf", f.Title)
	s.Equal("http://yourdomain.com/report.pdf", f.URL)
	s.True(f.PublicAccess)
	s.False(f.PrivateContent)
	s.Nil(f.Description)
	s.Nil(f.BatchNumber)

	content, err := os.ReadFile(filepath.Join(s.dir, "report.pdf"))
	s.Require().NoError(err)
	s.Equal("pdf bytes", string(content))
}

func (s *BotSuite) TestUploadWithShortener() {
	s.settings.ToggleShortener()
	s.Require().NoError(s.upload(document(7, "report.pdf", "x")))

	s.Equal([]string{"http://yourdomain.com/report.pdf"}, s.shortener.calls)
	s.Equal(`File "report.pdf" has been stored! Shortened Link: http://s/ab`, s.lastReply())
	f, err := s.files.GetByID(s.ctx, 1)
	s.Require().NoError(err)
	s.Equal("http://s/ab", f.URL)
}

func (s *BotSuite) TestUploadShortenerFallback() {
	s.shortener.short = ""
	s.settings.ToggleShortener()
	s.Require().NoError(s.upload(document(7, "report.pdf", "x")))

	s.Equal(`File "report.pdf" has been stored! Shortened Link: http://yourdomain.com/report.pdf`, s.lastReply())
}

func (s *BotSuite) TestUploadEscapesLink() {
	s.Require().NoError(s.upload(document(7, "my report.pdf", "x")))
	s.Equal(`File "my report.pdf" has been stored! Link: http://yourdomain.com/my%20report.pdf`, s.lastReply())
}

func (s *BotSuite) TestUploadReplyUsesStoredName() {
	s.Require().NoError(s.upload(document(7, "dir/report.pdf", "x")))
	s.Equal(`File "report.pdf" has been stored! Link: http://yourdomain.com/report.pdf`, s.lastReply())

	f, err := s.files.GetByID(s.ctx, 1)
	s.Require().NoError(err)
	s.Equal("report.pdf", f.FileName)
}

func (s *BotSuite) TestUploadWithoutName() {
	s.Require().NoError(s.upload(document(99, "", "x")))
	s.Equal(`File "file_99" has been stored! Link: http://yourdomain.com/file_99`, s.lastReply())
	s.FileExists(filepath.Join(s.dir, "file_99"))
}

func (s *BotSuite) TestUploadOverwrites() {
	s.Require().NoError(s.upload(document(1, "a.txt", "first")))
	s.Require().NoError(s.upload(document(2, "a.txt", "second")))

	content, err := os.ReadFile(filepath.Join(s.dir, "a.txt"))
	s.Require().NoError(err)
	s.Equal("second", string(content))

	f, err := s.files.GetByID(s.ctx, 2)
	s.Require().NoError(err)
	s.NotEqual(int64(1), f.ID)
}

func (s *BotSuite) TestUploadStorageFailure() {
	failures := testutil.ToFloat64(metrics.IntakeFailures)
	s.bot.blobs = brokenBlobs{}
	s.Error(s.upload(document(7, "report.pdf", "x")))
	s.Equal(failures+1, testutil.ToFloat64(metrics.IntakeFailures))

	s.Empty(s.messenger.texts())
	_, err := s.files.GetByID(s.ctx, 1)
	s.ErrorIs(err, database.ErrNotFound)
}

func (s *BotSuite) TestUploadSchedulesDeletion() {
	s.send("/setautodelete 5")
	s.Require().NoError(s.upload(document(7, "report.pdf", "x")))

	s.Require().Len(s.scheduler.jobs, 1)
	job := s.scheduler.jobs[0]
	s.Equal(s.peer, job.peer)
	s.Equal(101, job.msgID)
	s.Equal(5*time.Second, job.after)
}

func (s *BotSuite) TestEdit() {
	f := s.create("report.pdf")
	s.send("/edit 1 Annual quarterly numbers for 2024")
	s.Equal("File updated: Annual", s.lastReply())

	got, err := s.files.GetByID(s.ctx, f.ID)
	s.Require().NoError(err)
	s.Equal("Annual", got.Title)
	s.Require().NotNil(got.Description)
	s.Equal("quarterly numbers for 2024", *got.Description)
}

func (s *BotSuite) TestEditNotFound() {
	f := s.create("report.pdf")
	s.send("/edit 42 t d")
	s.Equal(textNotFound, s.lastReply())

	got, err := s.files.GetByID(s.ctx, f.ID)
	s.Require().NoError(err)
	s.Equal("report.pdf", got.Title)
	s.Nil(got.Description)
}

func (s *BotSuite) TestEditUsage() {
	s.create("report.pdf")
	for _, text := range []string{"/edit", "/edit 1", "/edit 1 title", "/edit one title desc"} {
		s.send(text)
		s.Equal(usageEdit, s.lastReply(), text)
	}
	got, err := s.files.GetByID(s.ctx, 1)
	s.Require().NoError(err)
	s.Equal("report.pdf", got.Title)
}

func (s *BotSuite) TestDelete() {
	s.create("report.pdf")
	s.send("/delete 1")
	s.Equal("File deleted.", s.lastReply())

	_, err := s.files.GetByID(s.ctx, 1)
	s.ErrorIs(err, database.ErrNotFound)
}

func (s *BotSuite) TestDeleteNotFound() {
	s.create("report.pdf")
	s.send("/delete 42")
	s.Equal("File not found.", s.lastReply())

	_, err := s.files.GetByID(s.ctx, 1)
	s.NoError(err)
}

func (s *BotSuite) TestDeleteUsage() {
	s.send("/delete")
	s.Equal(usageDelete, s.lastReply())
	s.send("/delete abc")
	s.Equal(usageDelete, s.lastReply())
}

func (s *BotSuite) TestSetAccess() {
	s.create("report.pdf")
	for _, flag := range []string{"TRUE", "true", "TrUe"} {
		s.send("/set_access 1 false")
		s.send("/set_access 1 " + flag)
		s.Equal("Access updated.", s.lastReply())
		got, err := s.files.GetByID(s.ctx, 1)
		s.Require().NoError(err)
		s.True(got.PublicAccess, flag)
	}
	for _, flag := range []string{"false", "yes", "1"} {
		s.send("/set_access 1 true")
		s.send("/set_access 1 " + flag)
		got, err := s.files.GetByID(s.ctx, 1)
		s.Require().NoError(err)
		s.False(got.PublicAccess, flag)
	}
}

func (s *BotSuite) TestSetAccessNotFound() {
	s.send("/set_access 42 false")
	s.Equal(textNotFound, s.lastReply())
}

func (s *BotSuite) TestSetAccessUsage() {
	s.send("/set_access 1")
	s.Equal(usageSetAccess, s.lastReply())
	s.send("/set_access x true")
	s.Equal(usageSetAccess, s.lastReply())
}

func (s *BotSuite) TestToggleShortener() {
	calls := testutil.ToFloat64(metrics.Commands.WithLabelValues("toggle_shortener"))
	s.send("/toggle_shortener")
	s.Equal("URL shortener is now enabled.", s.lastReply())
	s.True(s.settings.ShortenerEnabled())

	s.send("/toggle_shortener")
	s.Equal("URL shortener is now disabled.", s.lastReply())
	s.False(s.settings.ShortenerEnabled())
	s.Equal(calls+2, testutil.ToFloat64(metrics.Commands.WithLabelValues("toggle_shortener")))
}

func (s *BotSuite) TestSetAutoDelete() {
	s.send("/setautodelete 5")
	s.Equal("Auto-delete timer set to 5 seconds.", s.lastReply())
	s.Equal(5*time.Second, s.settings.AutoDelete())

	for _, text := range []string{
		"/setautodelete abc",
		"/setautodelete",
		"/setautodelete -3",
		"/setautodelete 2.5",
		"/setautodelete 9300000000",
		"/setautodelete 99999999999999999999",
	} {
		s.send(text)
		s.Equal(usageSetAutoDelete, s.lastReply(), text)
		s.Equal(5*time.Second, s.settings.AutoDelete(), text)
	}

	s.send("/setautodelete 0")
	s.Equal(time.Duration(0), s.settings.AutoDelete())
}

func (s *BotSuite) TestSetAutoDeleteLargestDelayStillSchedules() {
	s.send(fmt.Sprintf("/setautodelete %d", settings.MaxAutoDelete))
	s.Equal(fmt.Sprintf("Auto-delete timer set to %d seconds.", settings.MaxAutoDelete), s.lastReply())

	s.Require().NoError(s.upload(document(7, "report.pdf", "x")))
	s.Require().Len(s.scheduler.jobs, 1)
	s.Positive(s.scheduler.jobs[0].after)
}

func (s *BotSuite) TestInfo() {
	s.create("report.pdf")
	s.send("/edit 1 Report yearly")
	s.send("/info 1")
	s.Equal("ID: 1\nFile name: report.pdf\nTitle: Report\nDescription: yearly\nPublic: true\nLink: http://yourdomain.com/report.pdf", s.lastReply())

	s.send("/info 2")
	s.Equal(textNotFound, s.lastReply())
	s.send("/info")
	s.Equal(usageInfo, s.lastReply())
}

func (s *BotSuite) TestCommandAddressedToBot() {
	s.bot.SetUsername("@FileStoreBot")
	s.send("/start@filestorebot")
	s.Equal(textWelcome, s.lastReply())

	s.send("/toggle_shortener@otherbot")
	s.Len(s.messenger.texts(), 1)
	s.False(s.settings.ShortenerEnabled())
}

func (s *BotSuite) TestIgnoresOtherText() {
	s.send("hello")
	s.send("/unknown 1 2")
	s.send("/")
	s.send("")
	s.Empty(s.messenger.texts())
}
