// Command remotekeys streams input events to a remotekeysd listener
package main

import (
	"os"

	"github.com/rs/zerolog/log"
)

func main() {
	if err := App().Run(os.Args); err != nil {
		log.Fatal().Err(err).Msg("remotekeys failed")
	}
}
