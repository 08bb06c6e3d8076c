// Package manifest models the hosting platform's deployment blueprint
// (render.yaml): the services it runs, the environment they receive and the
// disks attached to them.
//
// A blueprint for this bot looks like:
//
//	services:
//	  - type: worker
//	    name: snarky-savings-bot
//	    env: go
//	    buildCommand: go build -o bin/savingsbot ./cmd/savingsbot
//	    startCommand: ./bin/savingsbot run
//	    envVars:
//	      - key: DATA_DIR
//	        value: /data
//	      - key: TELEGRAM_BOT_TOKEN
//	        fromSecret: true
//	    disks:
//	      - name: savings-data
//	        mountPath: /data
//	        sizeGB: 1
//
// Parsing is strict: unknown keys are rejected so typos surface before the
// platform silently ignores them.
package manifest
