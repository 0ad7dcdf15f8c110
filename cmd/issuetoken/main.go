// Command issuetoken mints a player token for local testing. With -save the
// token is also recorded in the Mongo token store; -revoke instead deletes
// every stored token of the player.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"duelgate/internal/auth"
	"duelgate/internal/config"
	"duelgate/internal/db"
	"duelgate/internal/session"
)

func main() {
	id := flag.Int64("player", 0, "player ID")
	username := flag.String("username", "", "username claim")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime, 0 for none")
	save := flag.Bool("save", false, "record the token in the Mongo token store")
	revoke := flag.Bool("revoke", false, "delete the player's stored tokens instead of minting one")
	flag.Parse()

	var err error
	if *revoke {
		err = revokeTokens(session.PlayerID(*id))
	} else {
		err = run(session.PlayerID(*id), *username, *ttl, *save)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "issuetoken: %v\n", err)
		os.Exit(1)
	}
}

func run(id session.PlayerID, username string, ttl time.Duration, save bool) error {
	if id <= 0 {
		return fmt.Errorf("-player must be a positive ID")
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	token, err := auth.NewJWTVerifier(cfg.JWT.Secret, nil).Issue(id, username, ttl)
	if err != nil {
		return fmt.Errorf("signing token: %w", err)
	}

	if save {
		if !cfg.Mongo.Enabled() {
			return fmt.Errorf("-save requires MONGO_URI")
		}
		ctx := context.Background()
		client, database, err := db.ConnectMongo(ctx, cfg.Mongo)
		if err != nil {
			return err
		}
		defer func() { _ = client.Disconnect(ctx) }()
		if err := db.NewTokenStore(database).Save(ctx, id, username, token); err != nil {
			return err
		}
	}

	fmt.Println(token)
	return nil
}

func revokeTokens(id session.PlayerID) error {
	if id <= 0 {
		return fmt.Errorf("-player must be a positive ID")
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if !cfg.Mongo.Enabled() {
		return fmt.Errorf("-revoke requires MONGO_URI")
	}

	ctx := context.Background()
	client, database, err := db.ConnectMongo(ctx, cfg.Mongo)
	if err != nil {
		return err
	}
	defer func() { _ = client.Disconnect(ctx) }()

	n, err := db.NewTokenStore(database).Revoke(ctx, id)
	if err != nil {
		return err
	}
	fmt.Printf("revoked %d token(s) for player %d\n", n, id)
	return nil
}
