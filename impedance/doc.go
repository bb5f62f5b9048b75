// Package impedance computes the frequency-domain input impedance of a
// complete instrument: main bore, tone holes and radiating bell.
//
// A Simulation owns an immutable copy of the geometry plus the physical
// model selection, and sweeps arbitrary frequency grids against it. Sweeps
// parallelize over frequencies with index-aligned output, so results are
// identical regardless of the worker count.
//
// # Usage
//
//	sim, err := impedance.New(instrument,
//		impedance.WithTemperature(26),
//		impedance.WithMatchingVolume(true),
//	)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	freqs, _ := impedance.Grid(50, 2000, 391)
//	res, err := sim.Run(ctx, freqs)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	fmt.Println(res.Resonances())
//	_ = res.WriteCSV(os.Stdout)
//
// Fingering charts sweep all notes in one pass, reusing each frequency's
// assembled system across fingerings:
//
//	results, err := sim.RunChart(ctx, freqs, chart)
package impedance
