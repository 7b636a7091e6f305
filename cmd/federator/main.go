package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"os"
	"os/signal"
	"syscall"

	"github.com/pterm/pterm"
	"github.com/urfave/cli/v2"

	"github.com/bartossh/Federation/aeswrapper"
	"github.com/bartossh/Federation/client"
	"github.com/bartossh/Federation/configuration"
	"github.com/bartossh/Federation/federation"
	"github.com/bartossh/Federation/fileoperations"
	"github.com/bartossh/Federation/logging"
	"github.com/bartossh/Federation/natsclient"
	"github.com/bartossh/Federation/wallet"
)

const usage = `Federator is the command line tool of the federation members and the owner.
It keeps the sealed wallet, computes transaction ids and sends signed requests to the federation node.`

const (
	flagToken     = "token"
	flagHash      = "hash"
	flagValue     = "value"
	flagSender    = "sender"
	flagReceiver  = "receiver"
	flagType      = "type"
	flagPayload   = "payload"
	flagSignature = "signature"
	flagValid     = "valid"
	flagSent      = "sent"
	flagAddress   = "address"
	flagTxID      = "txid"
	flagNats      = "nats"
)

func keyFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: flagToken, Usage: "original token address, 0x prefixed hex", Required: true},
		&cli.StringFlag{Name: flagHash, Usage: "transaction hash on the source ledger, 0x prefixed hex", Required: true},
		&cli.StringFlag{Name: flagValue, Usage: "transferred value, unsigned 256 bit decimal or 0x prefixed hex", Required: true},
		&cli.StringFlag{Name: flagSender, Usage: "sender on the source ledger", Required: true},
		&cli.StringFlag{Name: flagReceiver, Usage: "receiver on the destination ledger", Required: true},
		&cli.UintFlag{Name: flagType, Usage: "transaction type, 0 melt, 1 mint, 2 transfer, 3 return"},
	}
}

func main() {
	var file string
	configurator := func() (configuration.Configuration, error) {
		if file == "" {
			return configuration.Configuration{}, errors.New("please specify configuration file path with -c <path to file>")
		}
		return configuration.Read(file)
	}

	rest := func() (*client.Rest, error) {
		cfg, err := configurator()
		if err != nil {
			return nil, err
		}
		fo := fileoperations.New(cfg.FileOperator, aeswrapper.New())
		c := client.NewRest(cfg.Client.NodeURL, cfg.Client.Timeout(), fo, wallet.New)
		return c, nil
	}

	ready := func() (*client.Rest, error) {
		c, err := rest()
		if err != nil {
			return nil, err
		}
		if err := c.ReadWalletFromFile(); err != nil {
			return nil, err
		}
		if err := c.ValidateApiVersion(); err != nil {
			return nil, err
		}
		return c, nil
	}

	app := &cli.App{
		Name:  "federator",
		Usage: usage,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Load configuration from `FILE`",
				Destination: &file,
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "wallet",
				Usage: "manage the sealed wallet",
				Subcommands: []*cli.Command{
					{
						Name:  "new",
						Usage: "create new wallet and seal it in the configured file",
						Flags: []cli.Flag{
							&cli.BoolFlag{Name: "force", Usage: "overwrite the existing sealed wallet"},
						},
						Action: func(ctx *cli.Context) error {
							cfg, err := configurator()
							if err != nil {
								return err
							}
							fo := fileoperations.New(cfg.FileOperator, aeswrapper.New())
							exists, err := fo.WalletExists()
							if err != nil {
								return err
							}
							if exists && !ctx.Bool("force") {
								return fmt.Errorf("%w, use --force to replace it", fileoperations.ErrWalletExists)
							}
							c := client.NewRest(cfg.Client.NodeURL, cfg.Client.Timeout(), fo, wallet.New)
							if err := c.NewWallet(); err != nil {
								return err
							}
							if err := c.SaveWalletToFile(); err != nil {
								return err
							}
							addr, err := c.Address()
							if err != nil {
								return err
							}
							pterm.Success.Printf("wallet created, address: %s\n", addr)
							return nil
						},
					},
					{
						Name:  "address",
						Usage: "print the wallet address",
						Action: func(_ *cli.Context) error {
							c, err := rest()
							if err != nil {
								return err
							}
							if err := c.ReadWalletFromFile(); err != nil {
								return err
							}
							addr, err := c.Address()
							if err != nil {
								return err
							}
							pterm.Info.Println(addr)
							return nil
						},
					},
				},
			},
			{
				Name:  "txid",
				Usage: "compute the transaction id of the proposal key",
				Flags: keyFlags(),
				Action: func(ctx *cli.Context) error {
					k, err := proposalKey(ctx)
					if err != nil {
						return err
					}
					id, err := federation.TransactionID(k)
					if err != nil {
						return err
					}
					pterm.Info.Println(id.String())
					return nil
				},
			},
			{
				Name:  "propose",
				Usage: "propose the transaction",
				Flags: append([]cli.Flag{
					&cli.StringFlag{Name: flagPayload, Usage: "opaque unsigned transaction payload, 0x prefixed hex"},
				}, keyFlags()...),
				Action: func(ctx *cli.Context) error {
					k, payload, err := keyAndPayload(ctx)
					if err != nil {
						return err
					}
					c, err := ready()
					if err != nil {
						return err
					}
					id, err := c.ProposeTransaction(k, payload)
					return printTxID("proposed", id, err)
				},
			},
			{
				Name:  "sign",
				Usage: "record the federator signature of the transaction",
				Flags: append([]cli.Flag{
					&cli.StringFlag{Name: flagSignature, Usage: "opaque signature of the transaction", Required: true},
					&cli.BoolFlag{Name: flagValid, Usage: "signature validity flag", Value: true},
				}, keyFlags()...),
				Action: func(ctx *cli.Context) error {
					k, err := proposalKey(ctx)
					if err != nil {
						return err
					}
					c, err := ready()
					if err != nil {
						return err
					}
					id, err := c.SignTransaction(k, ctx.String(flagSignature), ctx.Bool(flagValid))
					return printTxID("signed", id, err)
				},
			},
			{
				Name:  "sent",
				Usage: "store the final payload and mark the transaction as sent",
				Flags: append([]cli.Flag{
					&cli.StringFlag{Name: flagPayload, Usage: "final signed transaction payload, 0x prefixed hex"},
					&cli.BoolFlag{Name: flagSent, Usage: "mark the transaction as processed", Value: true},
				}, keyFlags()...),
				Action: func(ctx *cli.Context) error {
					k, payload, err := keyAndPayload(ctx)
					if err != nil {
						return err
					}
					c, err := ready()
					if err != nil {
						return err
					}
					id, err := c.SentTransaction(k, payload, ctx.Bool(flagSent))
					return printTxID("updated", id, err)
				},
			},
			{
				Name:  "fail",
				Usage: "fail the transaction proposal, owner only",
				Flags: keyFlags(),
				Action: func(ctx *cli.Context) error {
					k, err := proposalKey(ctx)
					if err != nil {
						return err
					}
					c, err := ready()
					if err != nil {
						return err
					}
					id, err := c.FailTransaction(k)
					return printTxID("failed", id, err)
				},
			},
			{
				Name:  "status",
				Usage: "print the transaction proposal",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: flagTxID, Usage: "transaction id, 0x prefixed hex", Required: true},
				},
				Action: func(ctx *cli.Context) error {
					id, err := federation.ParseTxID(ctx.String(flagTxID))
					if err != nil {
						return err
					}
					c, err := rest()
					if err != nil {
						return err
					}
					view, err := c.Transaction(id)
					if err != nil {
						return err
					}
					return printJSON(view)
				},
			},
			{
				Name:  "member",
				Usage: "manage the federators",
				Subcommands: []*cli.Command{
					{
						Name:  "add",
						Usage: "add the federator, owner only",
						Flags: []cli.Flag{&cli.StringFlag{Name: flagAddress, Required: true}},
						Action: func(ctx *cli.Context) error {
							c, err := ready()
							if err != nil {
								return err
							}
							if err := c.AddMember(federation.Identity(ctx.String(flagAddress))); err != nil {
								return err
							}
							pterm.Success.Printf("member %s added\n", ctx.String(flagAddress))
							return nil
						},
					},
					{
						Name:  "remove",
						Usage: "remove the federator, owner only",
						Flags: []cli.Flag{&cli.StringFlag{Name: flagAddress, Required: true}},
						Action: func(ctx *cli.Context) error {
							c, err := ready()
							if err != nil {
								return err
							}
							if err := c.RemoveMember(federation.Identity(ctx.String(flagAddress))); err != nil {
								return err
							}
							pterm.Success.Printf("member %s removed\n", ctx.String(flagAddress))
							return nil
						},
					},
					{
						Name:  "list",
						Usage: "list the federators and the owner",
						Action: func(_ *cli.Context) error {
							c, err := rest()
							if err != nil {
								return err
							}
							members, err := c.Members()
							if err != nil {
								return err
							}
							owner, err := c.Owner()
							if err != nil {
								return err
							}
							items := make([]pterm.BulletListItem, 0, len(members))
							for _, m := range members {
								items = append(items, pterm.BulletListItem{Level: 0, Text: string(m)})
							}
							pterm.Info.Printf("owner: %s\n", owner)
							return pterm.DefaultBulletList.WithItems(items).Render()
						},
					},
				},
			},
			{
				Name:  "owner",
				Usage: "manage the ownership",
				Subcommands: []*cli.Command{
					{
						Name:  "transfer",
						Usage: "transfer the ownership, owner only",
						Flags: []cli.Flag{&cli.StringFlag{Name: flagAddress, Required: true}},
						Action: func(ctx *cli.Context) error {
							c, err := ready()
							if err != nil {
								return err
							}
							if err := c.TransferOwnership(federation.Identity(ctx.String(flagAddress))); err != nil {
								return err
							}
							pterm.Success.Printf("ownership transferred to %s\n", ctx.String(flagAddress))
							return nil
						},
					},
				},
			},
			{
				Name:  "watch",
				Usage: "print committed federation events until interrupted",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: flagNats, Usage: "subscribe to the nats broker instead of the node websocket"},
				},
				Action: func(ctx *cli.Context) error {
					sigCtx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
					defer cancel()
					show := func(ev federation.Event) {
						if err := printJSON(ev); err != nil {
							pterm.Error.Println(err.Error())
						}
					}
					if ctx.Bool(flagNats) {
						cfg, err := configurator()
						if err != nil {
							return err
						}
						return watchNats(sigCtx, cfg.Nats, show)
					}
					c, err := ready()
					if err != nil {
						return err
					}
					return c.Subscribe(sigCtx, show)
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		pterm.Error.Println(err.Error())
		os.Exit(1)
	}
}

func watchNats(ctx context.Context, cfg natsclient.Config, call func(ev federation.Event)) error {
	sub, err := natsclient.SubscriberConnect(cfg)
	if err != nil {
		return err
	}
	defer sub.Disconnect()

	log := logging.New(func(err error) { pterm.Error.Println(err.Error()) }, func(error) {}, io.Discard)
	if err := sub.SubscribeEvents(call, log); err != nil {
		return err
	}
	<-ctx.Done()
	return nil
}

func proposalKey(ctx *cli.Context) (federation.ProposalKey, error) {
	var k federation.ProposalKey
	if err := k.OriginalTokenAddress.UnmarshalText([]byte(ctx.String(flagToken))); err != nil {
		return k, fmt.Errorf("token: %w", err)
	}
	if err := k.TransactionHash.UnmarshalText([]byte(ctx.String(flagHash))); err != nil {
		return k, fmt.Errorf("hash: %w", err)
	}
	value, ok := new(big.Int).SetString(ctx.String(flagValue), 0)
	if !ok {
		return k, fmt.Errorf("value: %w", federation.ErrInvalidValue)
	}
	if ctx.Uint(flagType) > 0xff {
		return k, fmt.Errorf("type %d out of range", ctx.Uint(flagType))
	}
	k.Value = value
	k.Sender = ctx.String(flagSender)
	k.Receiver = ctx.String(flagReceiver)
	k.TransactionType = federation.TransactionType(ctx.Uint(flagType))
	return k, k.Validate()
}

func keyAndPayload(ctx *cli.Context) (federation.ProposalKey, []byte, error) {
	k, err := proposalKey(ctx)
	if err != nil {
		return k, nil, err
	}
	var payload federation.HexBytes
	if raw := ctx.String(flagPayload); raw != "" {
		if err := payload.UnmarshalText([]byte(raw)); err != nil {
			return k, nil, fmt.Errorf("payload: %w", err)
		}
	}
	return k, payload, nil
}

func printTxID(action string, id federation.TxID, err error) error {
	if err != nil {
		return err
	}
	pterm.Success.Printf("transaction %s %s\n", id, action)
	return nil
}

func printJSON(v any) error {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	pterm.Println(string(raw))
	return nil
}
