package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/OpenTraceBench/pkg/driver"
	"github.com/OpenTraceLab/OpenTraceBench/pkg/instrument"
	"github.com/OpenTraceLab/OpenTraceBench/pkg/visa"
)

// genericProfile speaks only IEEE 488.2 common commands, enough for raw
// writes and queries.
const genericProfile = "standard-multimeter"

// Target selection flags shared by every command that talks to one
// instrument.
var (
	targetName    string
	targetAddress string
	gpibID        int
	serialPort    int
	usbID         string
	profileName   string
	channelID     int
	trace         bool
)

func addTargetFlags(c *cobra.Command) {
	c.Flags().StringVarP(&targetName, "instrument", "i", "",
		"instrument name from the config file")
	c.Flags().StringVarP(&targetAddress, "address", "a", "",
		"VISA resource string, e.g. GPIB0::5::INSTR")
	c.Flags().IntVar(&gpibID, "gpib", 0, "GPIB primary address")
	c.Flags().IntVar(&serialPort, "serial", 0, "serial port number (ASRL<n>)")
	c.Flags().StringVar(&usbID, "usb", "", "USB identifier, usually the serial number")
	c.Flags().StringVarP(&profileName, "profile", "p", "", "driver profile (see 'bench profiles')")
	c.Flags().IntVarP(&channelID, "channel", "c", 0, "active channel of multi-channel supplies")
	c.Flags().BoolVar(&trace, "trace", false, "log every command and reply on the transport")
}

// connect opens the selected instrument and binds it to its driver
// profile. When requireProfile is false a generic SCPI profile is used if
// none was given.
func connect(cmd *cobra.Command, requireProfile bool) (*instrument.Instrument, error) {
	address, profile, channel := targetAddress, profileName, channelID
	if targetName != "" {
		inst, ok := cfg.Instrument(targetName)
		if !ok {
			return nil, fmt.Errorf("no instrument named %q in the config file", targetName)
		}
		if address == "" {
			address = inst.Address
		}
		if profile == "" {
			profile = inst.Profile
		}
		if channel == 0 {
			channel = inst.Channel
		}
	}

	if profile == "" {
		if requireProfile {
			return nil, fmt.Errorf("no driver profile selected (use --profile or --instrument)")
		}
		profile = genericProfile
	}
	p, ok := driver.Lookup(profile)
	if !ok {
		return nil, fmt.Errorf("unknown driver profile: %s (see 'bench profiles')", profile)
	}

	mgr, err := createManager(backendName)
	if err != nil {
		return nil, err
	}

	var res visa.Resource
	if address != "" {
		res, err = mgr.OpenResource(address)
	} else {
		opts := visa.ConnectOptions{USB: usbID}
		if cmd.Flags().Changed("gpib") {
			opts.GPIB = &gpibID
		}
		if cmd.Flags().Changed("serial") {
			opts.Serial = &serialPort
		}
		res, address, err = visa.Open(cmd.Context(), mgr, opts)
	}
	if err != nil {
		return nil, err
	}

	if trace {
		res = visa.WithTrace(res, logger, address)
	}
	res = visa.WithSettleDelay(res, cfg.Transport.SettleDelay)

	in, err := instrument.New(p.Descriptor, res,
		instrument.WithLogger(logger.With("address", address, "profile", p.Name)),
		instrument.WithAddress(address),
		instrument.WithChannel(channel),
	)
	if err != nil {
		res.Close()
		return nil, err
	}
	if channel > 0 && in.Capabilities().Has(driver.CapChannelSelector) {
		if err := in.SetChannelID(channel); err != nil {
			in.Close()
			return nil, fmt.Errorf("select channel %d: %w", channel, err)
		}
	}
	logger.Debug("connected", "address", address, "profile", p.Name, "kind", in.Kind())
	return in, nil
}
