package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/OpenTraceBench/pkg/codec"
	"github.com/OpenTraceLab/OpenTraceBench/pkg/instrument"
)

const propertyList = "output, voltage, current, voltage-ac, current-ac, resistance, resistance-4w, power-range, channel"

var getCmd = &cobra.Command{
	Use:   "get <property>",
	Short: "Read a property",
	Long: `Read one property of the instrument through its driver profile.

Properties: ` + propertyList + `

Examples:
  bench get voltage --address SIM0::dmm::INSTR --profile standard-multimeter
  bench get output --address SIM0::psu::INSTR --profile rigol-dp832 --channel 2
  bench get power-range --gpib 5 --backend gpib --profile hp-mobile-comms`,
	Args: cobra.ExactArgs(1),
	RunE: runGet,
}

var setCmd = &cobra.Command{
	Use:   "set <property> <value>",
	Short: "Write a property",
	Long: `Write one property of the instrument through its driver profile.

Properties: output (on/off), voltage, current, resistance (loads only),
power-range (low/high), channel

Examples:
  bench set voltage 5.25 --address SIM0::psu::INSTR --profile rigol-dp832 --channel 3
  bench set output on --instrument bench-supply
  bench set resistance 100 --address SIM0::load::INSTR --profile standard-dynamic-load`,
	Args: cobra.ExactArgs(2),
	RunE: runSet,
}

func init() {
	for _, c := range []*cobra.Command{getCmd, setCmd} {
		rootCmd.AddCommand(c)
		addTargetFlags(c)
	}
}

func runGet(cmd *cobra.Command, args []string) error {
	in, err := connect(cmd, true)
	if err != nil {
		return err
	}
	defer in.Close()

	value, err := getProperty(in, strings.ToLower(args[0]))
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), value)
	return nil
}

func getProperty(in *instrument.Instrument, name string) (string, error) {
	switch name {
	case "output":
		on, err := in.Output()
		if err != nil {
			return "", err
		}
		if on {
			return "on", nil
		}
		return "off", nil
	case "voltage", "voltage-dc":
		return decimalString(in.VoltageDC())
	case "current", "current-dc":
		return decimalString(in.CurrentDC())
	case "voltage-ac":
		return decimalString(in.VoltageAC())
	case "current-ac":
		return decimalString(in.CurrentAC())
	case "resistance", "resistance-2w":
		return decimalString(in.Resistance2W())
	case "resistance-4w":
		return decimalString(in.Resistance4W())
	case "power-range":
		r, err := in.PowerRange()
		if err != nil {
			return "", err
		}
		return r.String(), nil
	case "channel":
		id, err := in.ChannelID()
		if err != nil {
			return "", err
		}
		return strconv.Itoa(id), nil
	default:
		return "", fmt.Errorf("unknown property: %s (supported: %s)", name, propertyList)
	}
}

func decimalString(v decimal.Decimal, err error) (string, error) {
	if err != nil {
		return "", err
	}
	return v.String(), nil
}

func runSet(cmd *cobra.Command, args []string) error {
	in, err := connect(cmd, true)
	if err != nil {
		return err
	}
	defer in.Close()

	name, raw := strings.ToLower(args[0]), args[1]
	if err := setProperty(in, name, raw); err != nil {
		return err
	}
	if verbose {
		fmt.Fprintf(cmd.OutOrStdout(), "%s set to %s on %s\n", name, raw, in.Address())
	}
	return nil
}

func setProperty(in *instrument.Instrument, name, raw string) error {
	switch name {
	case "output":
		on, err := parseSwitch(raw)
		if err != nil {
			return err
		}
		return in.SetOutput(on)
	case "voltage", "voltage-dc":
		v, err := parseDecimal(raw)
		if err != nil {
			return err
		}
		return in.SetVoltageDC(v)
	case "current", "current-dc":
		v, err := parseDecimal(raw)
		if err != nil {
			return err
		}
		return in.SetCurrentDC(v)
	case "resistance":
		v, err := parseDecimal(raw)
		if err != nil {
			return err
		}
		return in.SetResistance(v)
	case "power-range":
		r, ok := codec.ParsePowerRange(raw)
		if !ok {
			return fmt.Errorf("invalid power range: %s (expected low or high)", raw)
		}
		return in.SetPowerRange(r)
	case "channel":
		id, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("invalid channel: %s", raw)
		}
		return in.SetChannelID(id)
	default:
		return fmt.Errorf("unknown or read-only property: %s", name)
	}
}

func parseSwitch(raw string) (bool, error) {
	switch strings.ToLower(raw) {
	case "on":
		return true, nil
	case "off":
		return false, nil
	}
	on, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid output state: %s (expected on or off)", raw)
	}
	return on, nil
}

func parseDecimal(raw string) (decimal.Decimal, error) {
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid number: %s", raw)
	}
	return v, nil
}
