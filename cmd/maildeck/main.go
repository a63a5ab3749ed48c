package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/maildeck/maildeck/internal/config"
	"github.com/maildeck/maildeck/internal/mailbox"
	"github.com/maildeck/maildeck/internal/notify"
	"github.com/maildeck/maildeck/internal/restapi"
	"github.com/maildeck/maildeck/internal/updates"
)

func main() {
	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := restapi.NewClient(cfg.APIBaseURL, cfg.APIToken)
	store := mailbox.NewStore()
	notifier := notify.LogNotifier{}

	indexed := mailbox.NewIndexedCursor(store, client, cfg.PageLimit)
	unindexed := mailbox.NewUnindexedCursor(store, client, cfg.PageLimit)
	dispatcher := mailbox.NewDispatcher(store, client, notifier)
	dispatcher.OnAuthError(func(err error) {
		log.Printf("Session expired, shutting down: %v", err)
		stop()
	})

	log.Printf("maildeck starting (environment: %s)", cfg.Environment)

	if accounts, err := client.ListAccounts(ctx); err != nil {
		log.Printf("Failed to list accounts: %v", err)
	} else {
		for _, account := range accounts {
			log.Printf("Connected account: %s (%s)", account.EmailAddress, account.Provider)
		}
	}

	if result, err := client.Sync(ctx, restapi.MaxPageLimit); err != nil {
		log.Printf("Initial sync failed: %v", err)
	} else {
		log.Printf("Synced %d emails", result.SyncedCount)
	}

	filters := mailbox.Filters{Folder: "inbox", AccountID: cfg.AccountID}
	if err := indexed.LoadFirstPage(ctx, filters); err != nil {
		log.Printf("Failed to load indexed emails: %v", err)
	}
	if err := unindexed.LoadFirstPage(ctx, filters); err != nil {
		log.Printf("Failed to load unindexed emails: %v", err)
	}
	log.Printf("Loaded %d indexed and %d unindexed emails",
		store.Len(mailbox.CollectionIndexed), store.Len(mailbox.CollectionUnindexed))

	if cfg.WebSocketURL == "" {
		log.Printf("No WebSocket URL configured; realtime updates disabled")
		<-ctx.Done()
		return
	}

	listener := updates.NewListener(cfg.WebSocketURL, cfg.APIToken)
	go listener.Run(ctx)

	for {
		select {
		case <-ctx.Done():
			log.Printf("maildeck shutting down")
			return
		case event, ok := <-listener.Events():
			if !ok {
				return
			}
			log.Printf("Update received: %s (folder: %s)", event.Type, event.Folder)
			reload := filters
			if event.Folder != "" {
				reload.Folder = event.Folder
			}
			if err := indexed.LoadFirstPage(ctx, reload); err != nil {
				log.Printf("Failed to reload after update: %v", err)
			}
		}
	}
}
