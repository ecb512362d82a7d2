package main

import (
	"context"
	"log"

	"github.com/comfforts/logger"
	de "github.com/hankgalt/dualencoder"
	"github.com/hankgalt/dualencoder/pkg/domain"
)

func main() {
	l := logger.GetSlogLogger()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ctx = logger.WithLogger(ctx, l)

	const modelDir = "../models/ernie-query-encoder-onnx"

	model, err := de.NewDualEncoder(ctx, domain.DualEncoderConfig{
		Query: domain.EncoderConfig{
			Model:            modelDir,
			InputNameIDs:     "input_ids",
			InputNameTypeIDs: "token_type_ids",
			InputNameMask:    "attention_mask",
			OutputName:       "last_hidden_state",
			MaxSeqLen:        128,
		},
		ShareParameters: true,
	}, nil)
	if err != nil {
		log.Fatal(err)
	}
	defer model.Close(ctx)

	tok, err := de.NewBatchTokenizer(modelDir)
	if err != nil {
		log.Fatal(err)
	}

	queries, err := tok.EncodeBatch([]string{"how to compute sentence vectors in Go"}, 128)
	if err != nil {
		log.Fatal(err)
	}
	titles, err := tok.EncodeBatch([]string{"Computing sentence embeddings with a dual encoder"}, 128)
	if err != nil {
		log.Fatal(err)
	}

	sims, err := model.CosineSim(ctx, queries, titles)
	if err != nil {
		log.Fatal(err)
	}

	l.Info("scored query/title pairs", "similarities", sims, "embedding-dimension", model.QueryEncoder().HiddenSize())
}
