package browser

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sirupsen/logrus"

	"github.com/grovetools/tabd/config"
	"github.com/grovetools/tabd/errors"
	"github.com/grovetools/tabd/internal/daemon/store"
)

var pages = map[string]string{
	"home":    "<html><head><title>Home</title></head><body><h1>Home</h1><p>Welcome home.</p></body></html>",
	"about":   "<html><body><h1>About</h1><p>About us.</p></body></html>",
	"contact": "<html><body><p>Write to us.</p></body></html>",
}

type slowLoader struct {
	delay time.Duration
}

func (l slowLoader) Exists(string) bool { return true }

func (l slowLoader) Render(_ context.Context, name string) (string, error) {
	time.Sleep(l.delay)
	return "page " + name, nil
}

var _ = Describe("Browser daemon", func() {
	var (
		docDir string
		daemon *Daemon
		cancel context.CancelFunc
		done   chan error
		opts   []Option
	)

	send := func(c *Conn, text string) string {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		reply, err := c.Send(ctx, text)
		Expect(err).NotTo(HaveOccurred())
		return reply.Text
	}

	BeforeEach(func() {
		var err error
		docDir, err = os.MkdirTemp("", "tabd-docs-*")
		Expect(err).NotTo(HaveOccurred())
		for name, body := range pages {
			err = os.WriteFile(filepath.Join(docDir, name+".html"), []byte(body), 0644)
			Expect(err).NotTo(HaveOccurred())
		}
		opts = nil
	})

	JustBeforeEach(func() {
		cfg := config.Default()
		cfg.Render.Dir = docDir

		logger := logrus.New()
		logger.SetOutput(io.Discard)
		daemon = New(cfg, logrus.NewEntry(logger), opts...)

		var ctx context.Context
		ctx, cancel = context.WithCancel(context.Background())
		done = make(chan error, 1)
		go func() { done <- daemon.Run(ctx) }()
	})

	AfterEach(func() {
		cancel()
		Eventually(done, 5*time.Second).Should(Receive(BeNil()))
		os.RemoveAll(docDir)
	})

	Describe("navigation", func() {
		It("keeps history consistent across load and back", func() {
			tab := daemon.Connect(1)
			defer tab.Close()

			Expect(send(tab, "load home")).To(Equal("Home\nWelcome home.\n"))

			sess, ok := daemon.Registry().Get(1)
			Expect(ok).To(BeTrue())
			snap := sess.Snapshot()
			Expect(snap.History).To(Equal([]string{"home"}))
			Expect(snap.Position).To(Equal(0))
			Expect(snap.CurrentURL).To(Equal("home"))

			Expect(send(tab, "back")).To(Equal("[Browser] No previous page in history."))
			Expect(sess.Snapshot()).To(Equal(snap))

			send(tab, "load about")
			Expect(send(tab, "back")).To(Equal("Home\nWelcome home.\n"))
			Expect(sess.Snapshot().CurrentURL).To(Equal("home"))
		})

		It("evicts the oldest entry after ten pages", func() {
			tab := daemon.Connect(1)
			defer tab.Close()

			names := []string{"home", "about", "contact"}
			for i := 0; i < 11; i++ {
				send(tab, "load "+names[i%3])
			}

			sess, _ := daemon.Registry().Get(1)
			snap := sess.Snapshot()
			Expect(snap.History).To(HaveLen(10))
			Expect(snap.Position).To(Equal(9))
			Expect(snap.History[0]).To(Equal("about"))
		})

		It("suggests a near match for a missing page", func() {
			tab := daemon.Connect(1)
			defer tab.Close()

			Expect(send(tab, "load abuot")).To(Equal("[Browser] Error: Page not found. Did you mean 'about'?"))
			sess, _ := daemon.Registry().Get(1)
			Expect(sess.Snapshot().History).To(BeEmpty())
		})
	})

	Describe("synchronization", func() {
		It("rejects a bookmark without a current page", func() {
			tab := daemon.Connect(2)
			defer tab.Close()

			Expect(send(tab, "sync on")).To(HavePrefix("[Browser] Tab synchronization enabled."))
			Expect(send(tab, "bookmark")).To(Equal("[Browser] No page to bookmark."))
			Expect(daemon.Store().BookmarkCount()).To(Equal(0))
		})

		It("delivers a synced page load exactly once", func() {
			one := daemon.Connect(1)
			defer one.Close()
			two := daemon.Connect(2)
			defer two.Close()

			send(one, "sync on")
			send(two, "sync on")
			_, err := daemon.Drain(2)
			Expect(err).NotTo(HaveOccurred())

			send(one, "load home")

			events, err := daemon.Drain(2)
			Expect(err).NotTo(HaveOccurred())
			Expect(events).To(HaveLen(1))
			Expect(events[0].Kind).To(Equal(store.EventPageLoaded))
			Expect(events[0].Payload).To(Equal("home"))
			Expect(store.Notification(events[0])).To(Equal("Tab 1 loaded page: home"))

			again, err := daemon.Drain(2)
			Expect(err).NotTo(HaveOccurred())
			Expect(again).To(BeEmpty())

			own, err := daemon.Drain(1)
			Expect(err).NotTo(HaveOccurred())
			for _, ev := range own {
				Expect(ev.SenderTab).NotTo(Equal(1))
			}
		})

		It("gives unsynced tabs no broadcasts", func() {
			one := daemon.Connect(1)
			defer one.Close()
			two := daemon.Connect(2)
			defer two.Close()

			send(one, "sync on")
			send(two, "history")
			send(one, "load home")

			events, err := daemon.Drain(2)
			Expect(err).NotTo(HaveOccurred())
			Expect(events).To(BeEmpty())
		})

		It("announces a synced tab closing", func() {
			one := daemon.Connect(1)
			two := daemon.Connect(2)
			defer two.Close()

			send(one, "sync on")
			send(two, "sync on")
			daemon.Drain(2)

			one.Close()
			Expect(daemon.Store().TabActive(1)).To(BeFalse())

			events, err := daemon.Drain(2)
			Expect(err).NotTo(HaveOccurred())
			Expect(events).To(HaveLen(1))
			Expect(store.Notification(events[0])).To(Equal("Tab 1 closed"))
		})

		It("shares bookmarks between tabs", func() {
			one := daemon.Connect(1)
			defer one.Close()
			two := daemon.Connect(2)
			defer two.Close()

			send(one, "load contact")
			Expect(send(one, "bookmark")).To(Equal("[Browser] Bookmarked: contact"))
			Expect(send(two, "bookmarks")).To(Equal("[Browser] Bookmarks:\n1: contact (contact)\n"))
			Expect(send(two, "open 1")).To(Equal("Write to us.\n"))
		})
	})

	Describe("connections", func() {
		It("keeps a tab open while another connection speaks for it", func() {
			repl := daemon.Connect(1)
			defer repl.Close()
			two := daemon.Connect(2)
			defer two.Close()

			send(repl, "sync on")
			send(two, "sync on")
			daemon.Drain(2)

			oneShot := daemon.Connect(1)
			send(oneShot, "status")
			oneShot.Close()

			Expect(daemon.Store().TabActive(1)).To(BeTrue())
			Expect(send(repl, "status")).NotTo(BeEmpty())

			events, err := daemon.Drain(2)
			Expect(err).NotTo(HaveOccurred())
			Expect(events).To(BeEmpty())

			repl.Close()
			Expect(daemon.Store().TabActive(1)).To(BeFalse())
			events, err = daemon.Drain(2)
			Expect(err).NotTo(HaveOccurred())
			Expect(events).To(HaveLen(1))
			Expect(store.Notification(events[0])).To(Equal("Tab 1 closed"))
		})

		Context("with a slow document", func() {
			BeforeEach(func() {
				opts = []Option{WithLoader(slowLoader{delay: 200 * time.Millisecond})}
			})

			It("never answers a command with the reply to an abandoned one", func() {
				tab := daemon.Connect(1)
				defer tab.Close()

				ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
				_, err := tab.Send(ctx, "load slow")
				cancel()
				Expect(errors.Is(err, errors.ErrCodeTransportFailure)).To(BeTrue())

				Expect(send(tab, "history")).To(Equal("[Browser] History:\n  1: > slow\n"))
			})
		})
	})

	Describe("configuration", func() {
		It("applies a new inactivity threshold", func() {
			cfg := config.Default()
			cfg.Daemon.InactivityThreshold = "45s"
			daemon.ApplyConfig(cfg)

			Expect(daemon.Sweeper().Threshold()).To(Equal(45 * time.Second))
			Expect(daemon.Config()).To(BeIdenticalTo(cfg))
			Expect(daemon.Health()).To(Succeed())
		})
	})

	Context("without a coordination store", func() {
		BeforeEach(func() {
			opts = []Option{WithoutStore()}
		})

		It("still serves pages but refuses store features", func() {
			tab := daemon.Connect(1)
			defer tab.Close()

			Expect(send(tab, "load home")).To(Equal("Home\nWelcome home.\n"))
			Expect(send(tab, "sync on")).To(Equal("[Browser] Synchronization requires the coordination store."))
			Expect(send(tab, "status")).To(Equal("[Browser] Status not available (coordination store not initialized)"))

			_, err := daemon.Drain(1)
			Expect(err).To(HaveOccurred())
			Expect(daemon.Store()).To(BeNil())
			Expect(daemon.Sweeper()).To(BeNil())
		})
	})
})
